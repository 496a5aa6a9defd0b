// Package session maintains the agent's persistent control channel to the
// management server.
//
// # Overview
//
// The session package owns the WebSocket connection lifecycle: dialing the
// currently selected server address, sending adaptive heartbeats, and
// dispatching inbound server commands. On any transport failure it clears
// the live session, invalidates the cached server address, and reconnects
// after a fixed backoff.
//
// # Manager
//
// The Manager drives the lifecycle:
//
//	mgr := session.NewManager(deviceID, token, port, sel, tasks, pol, runner, cell, backoff, logger)
//	go mgr.Run(ctx)
//
// Inbound commands handled:
//
//   - run_task: execute a pushed task right away
//   - schedule_task: persist a task for the local scheduler
//   - cancel_task: flag a stored task as cancelled
//   - update_policy: merge new check-in thresholds
//   - disk_scan_request: collect and publish a partition breakdown
//
// # Cell
//
// Cell is the single-slot holder for the live connection. Everything that
// wants to emit an event (task output, results, disk scans) publishes
// through the Cell; when disconnected the event is dropped rather than
// queued, because the server re-syncs state on the next check-in.
//
// # Heartbeats
//
// The heartbeat interval is re-read from the policy on every cycle and
// keyed off battery state, so a device on battery power backs off its
// cadence without reconnecting.
package session
