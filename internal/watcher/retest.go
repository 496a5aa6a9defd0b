// ABOUTME: Periodic forced re-probe of the server addresses
// ABOUTME: Wakes when the selector's cached answer ages out and forces a fresh probe

package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/droverhq/drover-agent/internal/selector"
)

// Retester forces a fresh address probe whenever the cached answer reaches
// its weekly age limit, so a server that moved between networks is found
// without waiting for a disconnect.
type Retester struct {
	sel    *selector.Selector
	logger *slog.Logger

	wait func() time.Duration
}

// NewRetester creates a Retester over the shared selector.
func NewRetester(sel *selector.Selector, logger *slog.Logger) *Retester {
	return &Retester{sel: sel, logger: logger, wait: sel.RetestWait}
}

// Run sleeps until the next re-test is owed, forces a probe, and repeats
// until ctx ends.
func (r *Retester) Run(ctx context.Context) error {
	for {
		wait := r.wait()
		r.logger.Debug("next address re-test scheduled", "in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		addr := r.sel.Select(ctx, true)
		r.logger.Info("periodic address re-test complete", "addr", addr)
	}
}
