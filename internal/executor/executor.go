// ABOUTME: Runs task script bodies under an interpreter with a hard timeout
// ABOUTME: Streams stdout line-by-line over the live session and caps captured output

package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/droverhq/drover-agent/internal/session"
	"github.com/droverhq/drover-agent/internal/task"
)

// Default execution limits. Output beyond the caps is discarded, not
// buffered, so a runaway script cannot exhaust agent memory.
const (
	DefaultTimeout   = 300 * time.Second
	DefaultStdoutCap = 65535
	DefaultStderrCap = 16383

	// DefaultWaitGrace bounds how long a finished or killed task may hold
	// the output pipes open through surviving children before they are
	// force-closed. Without it a backgrounded grandchild inheriting stdout
	// keeps the stream reader blocked past the execution timeout.
	DefaultWaitGrace = 5 * time.Second
)

// Result is the terminal record of one execution, shaped for the
// task_result wire message. ExitCode -1 marks a timeout or launch failure.
type Result struct {
	TaskID    string    `json:"task_id"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	StartedAt time.Time `json:"started_at"`
}

// Executor runs task bodies. One Executor is shared by the scheduler and
// the session dispatch path; it holds no per-task state.
type Executor struct {
	logger    *slog.Logger
	timeout   time.Duration
	waitGrace time.Duration
	stdoutCap int
	stderrCap int
}

// New creates an Executor with the given hard timeout and the default
// output caps. A zero timeout selects DefaultTimeout.
func New(timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		logger:    logger,
		timeout:   timeout,
		waitGrace: DefaultWaitGrace,
		stdoutCap: DefaultStdoutCap,
		stderrCap: DefaultStderrCap,
	}
}

// Execute runs the task body to completion, streaming stdout lines through
// pub as it goes, and returns the terminal Result. The same Result is also
// published as a task_result event, followed by a terminal progress marker.
// Execute never returns an error: every failure mode is encoded in the
// Result so the server always receives a conclusion.
func (e *Executor) Execute(ctx context.Context, t task.Task, pub session.Publisher) Result {
	started := time.Now().UTC()
	e.logger.Info("executing task", "task_id", t.ID, "script_type", t.Script, "timeout", e.timeout)

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	name, args := interpreter(t.Script)
	cmd := exec.CommandContext(execCtx, name, append(args, t.Body)...)
	// Backgrounded children inherit the pipes; cap how long they can keep
	// the reader and Wait blocked after the task itself is done or killed.
	cmd.WaitDelay = e.waitGrace

	stdout := newCapBuffer(e.stdoutCap)
	stderr := newCapBuffer(e.stderrCap)
	cmd.Stderr = stderr

	pr, pw := io.Pipe()
	cmd.Stdout = pw

	res := Result{TaskID: t.ID, StartedAt: started}

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		res.ExitCode = -1
		res.Stderr = err.Error()
		e.finish(ctx, res, pub)
		return res
	}

	// Stream concurrently with Wait: Wait owns pipe teardown (WaitDelay
	// force-closes pipes a surviving child still holds), so it must not
	// sit behind a reader that only unblocks when those pipes close.
	streamed := make(chan struct{})
	go func() {
		defer close(streamed)
		e.stream(ctx, t.ID, pr, stdout, pub)
	}()

	waitErr := cmd.Wait()
	pw.Close()
	<-streamed

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		res.ExitCode = -1
		res.Stderr = appendLine(res.Stderr, fmt.Sprintf("task timed out after %ds", int(e.timeout.Seconds())))
		e.logger.Warn("task timed out", "task_id", t.ID)
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The task exited cleanly; only an orphaned child held the pipes.
		res.ExitCode = 0
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Stderr = waitErr.Error()
		}
	}

	e.logger.Info("task finished", "task_id", t.ID, "exit_code", res.ExitCode,
		"duration", time.Since(started).Round(time.Millisecond))
	e.finish(ctx, res, pub)
	return res
}

// stream forwards stdout lines as incremental task_output events while also
// accumulating them into the capped capture buffer.
func (e *Executor) stream(ctx context.Context, taskID string, r io.Reader, capture *capBuffer, pub session.Publisher) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		capture.WriteString(line + "\n")
		pub.Publish(ctx, session.NewTaskOutput(taskID, line, 50))
	}
}

// finish publishes the terminal result and the progress-complete marker.
func (e *Executor) finish(ctx context.Context, res Result, pub session.Publisher) {
	pub.Publish(ctx, session.NewTaskResult(res))
	pub.Publish(ctx, session.NewTaskOutput(res.TaskID, "", 100))
}

// appendLine adds a line to captured output, preserving what the script
// already wrote.
func appendLine(existing, line string) string {
	if existing == "" {
		return line
	}
	if !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}
	return existing + line
}

// interpreter maps a script kind to its launch vector. Unknown kinds fall
// back to the shell.
func interpreter(kind task.ScriptKind) (string, []string) {
	switch kind {
	case task.ScriptBash:
		return "bash", []string{"-c"}
	case task.ScriptPython:
		return "python3", []string{"-c"}
	default:
		return "/bin/sh", []string{"-c"}
	}
}

// capBuffer accumulates up to limit bytes and silently drops the rest.
type capBuffer struct {
	limit int
	b     strings.Builder
}

func newCapBuffer(limit int) *capBuffer {
	return &capBuffer{limit: limit}
}

func (c *capBuffer) Write(p []byte) (int, error) {
	remaining := c.limit - c.b.Len()
	if remaining > 0 {
		if len(p) > remaining {
			c.b.Write(p[:remaining])
		} else {
			c.b.Write(p)
		}
	}
	return len(p), nil
}

func (c *capBuffer) WriteString(s string) {
	_, _ = c.Write([]byte(s))
}

func (c *capBuffer) String() string {
	return c.b.String()
}
