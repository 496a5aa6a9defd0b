// ABOUTME: Task record types shared by the store, trigger evaluator, and executor
// ABOUTME: JSON field names follow the server wire format for schedule_task payloads

package task

import "time"

// TriggerKind governs when a task becomes due.
type TriggerKind string

const (
	// TriggerImmediate tasks are always due and consumed on first dispatch.
	TriggerImmediate TriggerKind = "now"
	// TriggerOnce tasks fire at ScheduledAt and are deleted after dispatch.
	TriggerOnce TriggerKind = "once"
	// TriggerInterval tasks fire every IntervalSeconds since the last run.
	TriggerInterval TriggerKind = "interval"
	// TriggerCron tasks fire per a 5-field cron-like expression.
	TriggerCron TriggerKind = "cron"
	// TriggerEvent tasks fire when the watcher observes the named event.
	TriggerEvent TriggerKind = "event"
)

// ScriptKind selects the interpreter a task body is handed to.
type ScriptKind string

const (
	ScriptShell  ScriptKind = "shell"
	ScriptBash   ScriptKind = "bash"
	ScriptPython ScriptKind = "python"
)

// Task is one remotely or locally schedulable unit of script execution.
// A cancelled task is never selected by the scheduler and is eligible for
// garbage collection.
type Task struct {
	ID      string      `json:"task_id"`
	Name    string      `json:"name,omitempty"`
	Trigger TriggerKind `json:"trigger_type"`
	Script  ScriptKind  `json:"script_type"`
	Body    string      `json:"script_body"`

	// Trigger parameters; which one applies depends on Trigger.
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	IntervalSeconds int        `json:"interval_seconds,omitempty"`
	CronExpression  string     `json:"cron_expression,omitempty"`
	EventTrigger    string     `json:"event_trigger,omitempty"`

	LastRun   *time.Time `json:"last_run,omitempty"`
	Cancelled bool       `json:"cancelled,omitempty"`
}

// EventNetworkChange is the event name fired when the agent's network
// attachment changes.
const EventNetworkChange = "network_change"
