// ABOUTME: Chooses which server endpoint (local vs VPN overlay) is currently reachable
// ABOUTME: Caches the choice for a week with forced re-tests and a local-first fallback

package selector

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/droverhq/drover-agent/internal/state"
)

// RetestInterval is how long a successful probe result stays valid before
// the selector re-probes on its own.
const RetestInterval = 7 * 24 * time.Hour

// MinRetestWait bounds the weekly re-test sleep from below so corrupted
// timestamps cannot produce a tight loop.
const MinRetestWait = time.Hour

// Selector picks the reachable server host. The local address is preferred
// (highest bandwidth, lowest latency); the overlay address is the failover.
// Address changes are rare, so the weekly cadence keeps probe overhead out
// of the steady state.
type Selector struct {
	local   string
	overlay string
	port    string
	state   *state.Store
	timeout time.Duration
	logger  *slog.Logger

	// dial is swappable for tests; defaults to a plain TCP dialer.
	dial func(ctx context.Context, addr string) error
}

// New creates a Selector over the two candidate hosts.
func New(local, overlay, port string, st *state.Store, probeTimeout time.Duration, logger *slog.Logger) *Selector {
	s := &Selector{
		local:   local,
		overlay: overlay,
		port:    port,
		state:   st,
		timeout: probeTimeout,
		logger:  logger,
	}
	s.dial = s.tcpDial
	return s
}

// NewWithDialer creates a Selector whose reachability probe uses the given
// dialer instead of plain TCP.
func NewWithDialer(local, overlay, port string, st *state.Store, probeTimeout time.Duration, logger *slog.Logger, dial func(ctx context.Context, addr string) error) *Selector {
	s := New(local, overlay, port, st, probeTimeout, logger)
	s.dial = dial
	return s
}

// Select returns the server host to use. With a fresh cached answer and
// force false it returns the cache without probing. Otherwise it probes
// local first, then overlay; if neither answers it returns the previous
// cached host, or the local host as a last resort so the agent always
// attempts something.
func (s *Selector) Select(ctx context.Context, force bool) string {
	cached := s.state.Get(state.KeyActiveAddr)
	if cached != "" && !force && !s.stale() {
		return cached
	}

	s.logger.Info("probing server addresses", "local", s.local, "overlay", s.overlay)

	var chosen string
	switch {
	case s.probe(ctx, s.local):
		chosen = s.local
		s.logger.Info("selected local address", "addr", chosen)
	case s.overlay != "" && s.probe(ctx, s.overlay):
		chosen = s.overlay
		s.logger.Info("selected overlay address", "addr", chosen)
	default:
		fallback := cached
		if fallback == "" {
			fallback = s.local
		}
		s.logger.Warn("no server address reachable, using fallback", "addr", fallback)
		return fallback
	}

	if err := s.state.Update(func(m map[string]string) {
		m[state.KeyActiveAddr] = chosen
		m[state.KeyLastAddrTest] = time.Now().UTC().Format(time.RFC3339)
	}); err != nil {
		s.logger.Warn("persisting selected address failed", "error", err)
	}
	return chosen
}

// Invalidate clears the cached address so the next Select re-probes.
// Called on session disconnect and on detected network change.
func (s *Selector) Invalidate() {
	if err := s.state.Set(state.KeyActiveAddr, ""); err != nil {
		s.logger.Warn("clearing cached address failed", "error", err)
	}
}

// RetestWait returns how long until the weekly re-test should fire,
// computed from the persisted last-test timestamp.
func (s *Selector) RetestWait() time.Duration {
	last := s.state.GetTime(state.KeyLastAddrTest)
	if last.IsZero() {
		return MinRetestWait
	}
	wait := RetestInterval - time.Since(last)
	if wait < MinRetestWait {
		return MinRetestWait
	}
	return wait
}

// stale reports whether the cached answer is older than RetestInterval.
func (s *Selector) stale() bool {
	last := s.state.GetTime(state.KeyLastAddrTest)
	if last.IsZero() {
		return true
	}
	return time.Since(last) > RetestInterval
}

// probe reports whether the host answers on the server port.
func (s *Selector) probe(ctx context.Context, host string) bool {
	if host == "" {
		return false
	}
	err := s.dial(ctx, net.JoinHostPort(host, s.port))
	if err != nil {
		s.logger.Debug("probe failed", "host", host, "error", err)
	}
	return err == nil
}

func (s *Selector) tcpDial(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
