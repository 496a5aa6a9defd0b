// ABOUTME: Polls the network fingerprint and reacts to attachment changes
// ABOUTME: A change invalidates the cached server address and fires event-triggered tasks

package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/droverhq/drover-agent/internal/selector"
	"github.com/droverhq/drover-agent/internal/state"
	"github.com/droverhq/drover-agent/internal/task"
	"github.com/droverhq/drover-agent/internal/telemetry"
)

// EventSink receives named event occurrences. Satisfied by the scheduler.
type EventSink interface {
	FireEvent(ctx context.Context, name string)
}

// NetWatcher polls the network fingerprint (SSID when available, local IP
// otherwise) and treats any change as a network-change event: the cached
// server address is dropped and bound event tasks fire.
type NetWatcher struct {
	state  *state.Store
	sel    *selector.Selector
	sink   EventSink
	tick   time.Duration
	logger *slog.Logger

	fingerprint func(ctx context.Context) string
}

// NewNetWatcher creates a watcher polling every tick.
func NewNetWatcher(st *state.Store, sel *selector.Selector, sink EventSink, tick time.Duration, logger *slog.Logger) *NetWatcher {
	return &NetWatcher{
		state:       st,
		sel:         sel,
		sink:        sink,
		tick:        tick,
		logger:      logger,
		fingerprint: telemetry.NetworkFingerprint,
	}
}

// Run polls until ctx ends. The first observation only seeds the baseline;
// it never fires.
func (w *NetWatcher) Run(ctx context.Context) error {
	last := w.state.Get(state.KeyLastNetwork)
	if last == "" {
		last = w.fingerprint(ctx)
		w.record(last)
	}

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			current := w.fingerprint(ctx)
			if current == "" || current == last {
				continue
			}
			w.logger.Info("network change detected", "from", last, "to", current)
			last = current
			w.record(current)
			w.sel.Invalidate()
			w.sink.FireEvent(ctx, task.EventNetworkChange)
		}
	}
}

func (w *NetWatcher) record(fp string) {
	if err := w.state.Set(state.KeyLastNetwork, fp); err != nil {
		w.logger.Warn("persisting network fingerprint failed", "error", err)
	}
}
