// ABOUTME: Single-slot holder for the current live session, if any
// ABOUTME: Written only by the session manager; read by everyone for best-effort publishes

package session

import (
	"context"
	"log/slog"
	"sync"
)

// Transport is the minimal connection surface the manager drives and
// publishers send through.
type Transport interface {
	Send(ctx context.Context, msg any) error
	Recv(ctx context.Context) (Inbound, error)
	Close()
}

// Publisher is the best-effort event sink handed to task execution and the
// watchers. A missing session never blocks the caller.
type Publisher interface {
	Publish(ctx context.Context, msg any)
}

// Cell holds the current live session reference. The session manager sets
// it on connect and clears it on disconnect; readers must tolerate it being
// absent or going stale mid-operation.
type Cell struct {
	mu     sync.RWMutex
	t      Transport
	logger *slog.Logger
}

// NewCell creates an empty Cell.
func NewCell(logger *slog.Logger) *Cell {
	return &Cell{logger: logger}
}

// Set publishes a new live session.
func (c *Cell) Set(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Clear removes the live session reference.
func (c *Cell) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = nil
}

// Get returns the live session, or nil when disconnected.
func (c *Cell) Get() Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Publish sends msg over the live session if one exists. Failures are
// swallowed: publishing is always best-effort and never escalates into the
// caller's control flow.
func (c *Cell) Publish(ctx context.Context, msg any) {
	t := c.Get()
	if t == nil {
		c.logger.Debug("no live session, dropping outbound event")
		return
	}
	if err := t.Send(ctx, msg); err != nil {
		c.logger.Debug("publishing event failed", "error", err)
	}
}
