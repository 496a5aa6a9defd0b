// ABOUTME: Control-channel wire messages: JSON envelopes with a type discriminator
// ABOUTME: Inbound commands are parsed into Inbound; outbound events have typed constructors

package session

import "encoding/json"

// Message type discriminators on the control channel.
const (
	// Inbound (server → agent)
	TypeRunTask         = "run_task"
	TypeScheduleTask    = "schedule_task"
	TypeCancelTask      = "cancel_task"
	TypeUpdatePolicy    = "update_policy"
	TypeDiskScanRequest = "disk_scan_request"

	// Outbound (agent → server)
	TypeHeartbeat  = "heartbeat"
	TypeTaskOutput = "task_output"
	TypeTaskResult = "task_result"
	TypeDiskScan   = "disk_scan"
)

// Inbound is a server command. Data carries the type-specific payload;
// cancel_task puts the id at the top level instead.
type Inbound struct {
	Type   string          `json:"type"`
	TaskID string          `json:"task_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// DataMessage is the common outbound shape: a type tag plus payload.
type DataMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// TaskOutput is one incremental chunk of a running task's output.
type TaskOutput struct {
	Type     string `json:"type"`
	TaskID   string `json:"task_id"`
	Output   string `json:"output"`
	Progress int    `json:"progress"`
}

// NewHeartbeat wraps a telemetry snapshot.
func NewHeartbeat(snapshot any) DataMessage {
	return DataMessage{Type: TypeHeartbeat, Data: snapshot}
}

// NewTaskResult wraps a completed execution's structured result.
func NewTaskResult(result any) DataMessage {
	return DataMessage{Type: TypeTaskResult, Data: result}
}

// NewDiskScan wraps a partition breakdown.
func NewDiskScan(details any) DataMessage {
	return DataMessage{Type: TypeDiskScan, Data: map[string]any{"details": details}}
}

// NewTaskOutput builds an incremental output event with a coarse progress
// indicator; progress 100 marks the terminal event for a task.
func NewTaskOutput(taskID, output string, progress int) TaskOutput {
	return TaskOutput{Type: TypeTaskOutput, TaskID: taskID, Output: output, Progress: progress}
}
