// ABOUTME: Composition root: wires stores, selector, session, scheduler, and watchers
// ABOUTME: Runs all agent loops until the context ends; individual loop failures never kill siblings

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/droverhq/drover-agent/internal/api"
	"github.com/droverhq/drover-agent/internal/config"
	"github.com/droverhq/drover-agent/internal/executor"
	"github.com/droverhq/drover-agent/internal/policy"
	"github.com/droverhq/drover-agent/internal/scheduler"
	"github.com/droverhq/drover-agent/internal/selector"
	"github.com/droverhq/drover-agent/internal/session"
	"github.com/droverhq/drover-agent/internal/state"
	"github.com/droverhq/drover-agent/internal/task"
	"github.com/droverhq/drover-agent/internal/telemetry"
	"github.com/droverhq/drover-agent/internal/watcher"
)

// Hardware inventory cadence. The first report is delayed so startup is not
// slowed by the inventory scan.
const (
	hardwareReportDelay    = 60 * time.Second
	hardwareReportInterval = 30 * 24 * time.Hour
)

// Agent is the assembled runtime. Construct with New, drive with Run.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	deviceID string
	state    *state.Store
	tasks    *task.Store
	policy   *policy.Policy
	sel      *selector.Selector
	cell     *session.Cell
	client   *api.Client
	exec     *executor.Executor
	manager  *session.Manager
	sched    *scheduler.Scheduler
	netwatch *watcher.NetWatcher
	retester *watcher.Retester
}

// execRunner adapts the executor to the session manager's runner interface,
// binding output to the live-session cell.
type execRunner struct {
	exec *executor.Executor
	cell *session.Cell
}

func (r execRunner) RunTask(ctx context.Context, t task.Task) {
	r.exec.Execute(ctx, t, r.cell)
}

// New assembles the agent from configuration. The device identity is
// created on first run and persists in the state store.
func New(cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	fs := afero.NewOsFs()

	st := state.New(fs, filepath.Join(cfg.Storage.DataDir, "state.json"))
	deviceID, err := st.DeviceID()
	if err != nil {
		return nil, fmt.Errorf("establishing device identity: %w", err)
	}

	tasks := task.NewStore(fs, filepath.Join(cfg.Storage.DataDir, "scheduled_tasks.json"))
	pol := policy.Default()
	sel := selector.New(cfg.Server.LocalAddr, cfg.Server.OverlayAddr, cfg.Server.Port,
		st, cfg.Intervals.ProbeTimeout, logger)
	cell := session.NewCell(logger)
	client := api.New(sel, cfg.Server.Port, cfg.Server.Token, logger)
	exec := executor.New(cfg.Intervals.ExecTimeout, logger)

	runner := execRunner{exec: exec, cell: cell}
	manager := session.NewManager(deviceID, cfg.Server.Token, cfg.Server.Port,
		sel, tasks, pol, runner, cell, cfg.Intervals.ReconnectBackoff, logger)

	active := func(ctx context.Context, id string) bool {
		return client.TaskActive(ctx, sel.Select(ctx, false), id)
	}
	sched := scheduler.New(tasks, exec, cell, active, cfg.Intervals.SchedulerTick, logger)

	return &Agent{
		cfg:      cfg,
		logger:   logger,
		deviceID: deviceID,
		state:    st,
		tasks:    tasks,
		policy:   pol,
		sel:      sel,
		cell:     cell,
		client:   client,
		exec:     exec,
		manager:  manager,
		sched:    sched,
		netwatch: watcher.NewNetWatcher(st, sel, sched, cfg.Intervals.WatcherTick, logger),
		retester: watcher.NewRetester(sel, logger),
	}, nil
}

// DeviceID returns the persistent device identifier.
func (a *Agent) DeviceID() string {
	return a.deviceID
}

// Run performs the initial check-in and then drives every agent loop until
// ctx ends. A failed check-in is logged, not fatal: the agent still works
// from its persisted task list and built-in policy.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting", "device_id", a.deviceID,
		"local_addr", a.cfg.Server.LocalAddr, "overlay_addr", a.cfg.Server.OverlayAddr)

	a.checkIn(ctx)

	var wg sync.WaitGroup
	loops := []struct {
		name string
		run  func(context.Context) error
	}{
		{"session", a.manager.Run},
		{"scheduler", a.sched.Run},
		{"netwatch", a.netwatch.Run},
		{"retest", a.retester.Run},
		{"hardware", a.hardwareLoop},
		{"diskscan", a.diskScanLoop},
	}

	for _, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := loop.run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("agent loop exited", "loop", loop.name, "error", err)
			}
		}()
	}

	wg.Wait()
	a.logger.Info("agent stopped")
	return ctx.Err()
}

// checkIn registers with the server and applies the returned policy and
// task list.
func (a *Agent) checkIn(ctx context.Context) {
	resp, err := a.client.CheckInWithRetry(ctx, api.CheckinRequest{
		DeviceID: a.deviceID,
		Platform: runtime.GOOS,
		Snapshot: telemetry.Collect(),
	})
	if err != nil {
		a.logger.Warn("initial check-in failed, continuing with persisted state", "error", err)
		return
	}

	if len(resp.Policy) > 0 {
		a.policy.Merge(resp.Policy)
	}
	for _, t := range resp.ScheduledTasks {
		if err := a.tasks.Upsert(t); err != nil {
			a.logger.Error("storing server task failed", "task_id", t.ID, "error", err)
		}
	}
	a.logger.Info("check-in complete", "policies", len(resp.Policy), "tasks", len(resp.ScheduledTasks))
}

// diskScanLoop publishes a partition breakdown on the policy-defined
// cadence. The interval is re-read every cycle so a pushed policy update
// takes effect without a restart.
func (a *Agent) diskScanLoop(ctx context.Context) error {
	for {
		hours := a.policy.Get(policy.DiskScanIntervalHrs)
		if hours <= 0 {
			hours = 168
		}

		timer := time.NewTimer(time.Duration(hours) * time.Hour)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		details := telemetry.DiskScan(ctx)
		a.cell.Publish(ctx, session.NewDiskScan(details))
		a.logger.Info("periodic disk scan published", "partitions", len(details))
	}
}

// hardwareLoop pushes the hardware inventory shortly after startup and
// monthly thereafter.
func (a *Agent) hardwareLoop(ctx context.Context) error {
	delay := hardwareReportDelay
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		hw := telemetry.CollectHardware(ctx)
		addr := a.sel.Select(ctx, false)
		if err := a.client.ReportHardware(ctx, addr, a.deviceID, hw); err != nil {
			a.logger.Warn("hardware report failed", "error", err)
		} else {
			a.logger.Info("hardware report sent", "addr", addr)
		}
		delay = hardwareReportInterval
	}
}
