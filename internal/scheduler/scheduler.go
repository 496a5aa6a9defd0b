// ABOUTME: Local scheduling loop: walks the task store on a fixed tick and runs due tasks
// ABOUTME: Confirms server-side liveness before repeat triggers fire; consumes one-shot tasks

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/droverhq/drover-agent/internal/executor"
	"github.com/droverhq/drover-agent/internal/session"
	"github.com/droverhq/drover-agent/internal/task"
)

// Runner executes one due task. Satisfied by executor.Executor.
type Runner interface {
	Execute(ctx context.Context, t task.Task, pub session.Publisher) executor.Result
}

// Scheduler owns the periodic evaluation of the persisted task collection.
// Work that fails never aborts a pass; each task is considered independently.
type Scheduler struct {
	tasks  *task.Store
	run    Runner
	pub    session.Publisher
	logger *slog.Logger
	tick   time.Duration

	// active asks the server whether a task still exists and is not
	// cancelled; nil disables the check. Failing open is the caller's job.
	active func(ctx context.Context, id string) bool

	now func() time.Time
}

// New creates a Scheduler evaluating the store every tick.
func New(tasks *task.Store, run Runner, pub session.Publisher, active func(ctx context.Context, id string) bool, tick time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:  tasks,
		run:    run,
		pub:    pub,
		active: active,
		tick:   tick,
		logger: logger,
		now:    time.Now,
	}
}

// Run evaluates immediately, then on every tick, until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.pass(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

// pass runs every due, non-cancelled task once.
func (s *Scheduler) pass(ctx context.Context) {
	now := s.now()
	for _, t := range s.tasks.List() {
		if t.Cancelled {
			continue
		}
		if !task.Due(t, now) {
			continue
		}
		if needsLivenessCheck(t.Trigger) && s.active != nil && !s.active(ctx, t.ID) {
			s.logger.Info("task gone on server, cancelling locally", "task_id", t.ID)
			if err := s.tasks.Cancel(t.ID); err != nil {
				s.logger.Error("cancelling stale task failed", "task_id", t.ID, "error", err)
			}
			continue
		}
		s.dispatch(ctx, t, now)
	}
}

// FireEvent runs every non-cancelled event task bound to the named event.
// Called by the network watcher; event tasks are repeatable and keep their
// store entry.
func (s *Scheduler) FireEvent(ctx context.Context, name string) {
	now := s.now()
	for _, t := range s.tasks.List() {
		if t.Cancelled || t.Trigger != task.TriggerEvent || t.EventTrigger != name {
			continue
		}
		s.logger.Info("event task triggered", "task_id", t.ID, "event", name)
		s.dispatch(ctx, t, now)
	}
}

// dispatch executes the task, then either consumes it (one-shot kinds) or
// records the run for the next due evaluation. Bookkeeping happens after
// execution; the pass is sequential, so a long run cannot re-fire itself.
func (s *Scheduler) dispatch(ctx context.Context, t task.Task, now time.Time) {
	res := s.run.Execute(ctx, t, s.pub)
	s.logger.Info("scheduled task ran", "task_id", t.ID, "exit_code", res.ExitCode)

	if t.Trigger == task.TriggerImmediate || t.Trigger == task.TriggerOnce {
		if err := s.tasks.Remove(t.ID); err != nil {
			s.logger.Error("removing one-shot task failed", "task_id", t.ID, "error", err)
		}
		return
	}

	if err := s.tasks.MarkRun(t.ID, now); err != nil {
		s.logger.Error("recording task run failed", "task_id", t.ID, "error", err)
	}
}

// needsLivenessCheck reports whether the trigger kind warrants confirming
// the task with the server before running. Immediate tasks were just pushed
// and event tasks fire on local conditions only.
func needsLivenessCheck(kind task.TriggerKind) bool {
	switch kind {
	case task.TriggerOnce, task.TriggerInterval, task.TriggerCron:
		return true
	default:
		return false
	}
}
