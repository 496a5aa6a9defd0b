// ABOUTME: Session manager: connect/reconnect loop, adaptive heartbeats, command dispatch
// ABOUTME: Owns the live-session cell and invalidates the cached address on any transport error

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/droverhq/drover-agent/internal/policy"
	"github.com/droverhq/drover-agent/internal/selector"
	"github.com/droverhq/drover-agent/internal/task"
	"github.com/droverhq/drover-agent/internal/telemetry"
)

// TaskRunner executes one task synchronously. The manager off-loads it to a
// goroutine so dispatch of one command never blocks dispatch of the next.
type TaskRunner interface {
	RunTask(ctx context.Context, t task.Task)
}

// Manager maintains the long-lived control channel: it selects a server
// address, connects, runs heartbeat and dispatch duties concurrently, and
// on any transport error clears the session, invalidates the cached
// address, backs off, and reconnects. It never returns until ctx ends.
type Manager struct {
	deviceID string
	token    string
	port     string

	sel     *selector.Selector
	tasks   *task.Store
	policy  *policy.Policy
	runner  TaskRunner
	cell    *Cell
	logger  *slog.Logger
	backoff time.Duration

	// Swappable for tests.
	dial     func(ctx context.Context, url string) (Transport, error)
	snapshot func() any
	battery  func() (*float64, bool)
	diskScan func(ctx context.Context) any
}

// NewManager wires a Manager over the shared stores and the live-session cell.
func NewManager(deviceID, token, port string, sel *selector.Selector, tasks *task.Store, pol *policy.Policy, runner TaskRunner, cell *Cell, backoff time.Duration, logger *slog.Logger) *Manager {
	m := &Manager{
		deviceID: deviceID,
		token:    token,
		port:     port,
		sel:      sel,
		tasks:    tasks,
		policy:   pol,
		runner:   runner,
		cell:     cell,
		backoff:  backoff,
		logger:   logger,
	}
	m.dial = func(ctx context.Context, u string) (Transport, error) { return Dial(ctx, u) }
	m.snapshot = func() any { return telemetry.Collect() }
	m.battery = telemetry.Battery
	m.diskScan = func(ctx context.Context) any { return telemetry.DiskScan(ctx) }
	return m
}

// Run drives the connection lifecycle until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		addr := m.sel.Select(ctx, false)
		target := m.sessionURL(addr)

		conn, err := m.dial(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("session connect failed", "addr", addr, "error", err, "retry_in", m.backoff)
			m.sel.Invalidate()
			if !sleepCtx(ctx, m.backoff) {
				return ctx.Err()
			}
			continue
		}

		m.logger.Info("session connected", "addr", addr)
		m.cell.Set(conn)

		err = m.serve(ctx, conn)

		m.cell.Clear()
		conn.Close()
		m.sel.Invalidate()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("session disconnected", "error", err, "retry_in", m.backoff)
		if !sleepCtx(ctx, m.backoff) {
			return ctx.Err()
		}
	}
}

// sessionURL builds the connection URL embedding device identity and token.
func (m *Manager) sessionURL(addr string) string {
	return fmt.Sprintf("ws://%s/ws/agent/%s?token=%s",
		net.JoinHostPort(addr, m.port), m.deviceID, url.QueryEscape(m.token))
}

// serve runs the heartbeat and dispatch duties until either fails.
func (m *Manager) serve(ctx context.Context, conn Transport) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- m.heartbeatLoop(connCtx, conn) }()
	go func() { errCh <- m.receiveLoop(connCtx, conn) }()

	err := <-errCh
	cancel()
	<-errCh
	return err
}

// heartbeatLoop sends telemetry snapshots. The interval is re-evaluated
// from battery state and policy every cycle, so a battery-level change is
// reflected within one heartbeat period.
func (m *Manager) heartbeatLoop(ctx context.Context, conn Transport) error {
	for {
		if err := conn.Send(ctx, NewHeartbeat(m.snapshot())); err != nil {
			return fmt.Errorf("heartbeat send: %w", err)
		}

		level, charging := m.battery()
		interval := m.policy.CheckinInterval(level, charging)
		m.logger.Debug("heartbeat sent", "next_in", interval)

		if !sleepCtx(ctx, interval) {
			return ctx.Err()
		}
	}
}

// receiveLoop dispatches inbound commands until the transport fails.
func (m *Manager) receiveLoop(ctx context.Context, conn Transport) error {
	for {
		msg, err := conn.Recv(ctx)
		if err != nil {
			return fmt.Errorf("session receive: %w", err)
		}
		m.dispatch(ctx, msg)
	}
}

// dispatch handles one server command. Commands that imply execution are
// off-loaded so a long task never stalls the receive loop; handler errors
// are logged and swallowed.
func (m *Manager) dispatch(ctx context.Context, msg Inbound) {
	switch msg.Type {
	case TypeRunTask:
		var t task.Task
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			m.logger.Error("malformed run_task payload", "error", err)
			return
		}
		m.logger.Info("run_task received", "task_id", t.ID, "script_type", t.Script)
		// Execution survives a mid-run disconnect; only its own timeout bounds it.
		go m.runner.RunTask(context.WithoutCancel(ctx), t)

	case TypeScheduleTask:
		var t task.Task
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			m.logger.Error("malformed schedule_task payload", "error", err)
			return
		}
		if err := m.tasks.Upsert(t); err != nil {
			m.logger.Error("storing scheduled task failed", "task_id", t.ID, "error", err)
			return
		}
		m.logger.Info("task scheduled", "task_id", t.ID, "trigger", t.Trigger)

	case TypeCancelTask:
		if err := m.tasks.Cancel(msg.TaskID); err != nil {
			m.logger.Error("cancelling task failed", "task_id", msg.TaskID, "error", err)
			return
		}
		m.logger.Info("task cancelled", "task_id", msg.TaskID)

	case TypeUpdatePolicy:
		var patch map[string]int
		if err := json.Unmarshal(msg.Data, &patch); err != nil {
			m.logger.Error("malformed update_policy payload", "error", err)
			return
		}
		m.policy.Merge(patch)
		m.logger.Info("policy updated", "keys", len(patch))

	case TypeDiskScanRequest:
		go func(ctx context.Context) {
			details := m.diskScan(ctx)
			m.cell.Publish(ctx, NewDiskScan(details))
		}(context.WithoutCancel(ctx))

	default:
		m.logger.Debug("unknown command type", "type", msg.Type)
	}
}

// sleepCtx sleeps for d, returning false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
