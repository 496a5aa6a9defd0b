// ABOUTME: HTTP client for the server's agent-facing REST endpoints
// ABOUTME: Check-in with retry, task liveness queries, and hardware inventory reports

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/droverhq/drover-agent/internal/selector"
	"github.com/droverhq/drover-agent/internal/task"
	"github.com/droverhq/drover-agent/internal/telemetry"
)

const (
	checkinTimeout = 15 * time.Second
	queryTimeout   = 10 * time.Second

	maxCheckinAttempts = 10
)

// CheckinRequest is the registration payload sent at startup and whenever
// the agent needs to re-sync its policy and task list.
type CheckinRequest struct {
	DeviceID string `json:"device_id"`
	Platform string `json:"platform"`
	telemetry.Snapshot
}

// CheckinResponse carries the server's current policy thresholds and the
// scheduled task list for this device.
type CheckinResponse struct {
	Policy         map[string]int `json:"policy"`
	ScheduledTasks []task.Task    `json:"scheduled_tasks"`
}

// Client talks to the server REST API. All requests carry the agent token
// and are addressed through the shared address selector.
type Client struct {
	http   *http.Client
	sel    *selector.Selector
	port   string
	token  string
	logger *slog.Logger
}

// New creates a Client bound to the given selector and credentials.
func New(sel *selector.Selector, port, token string, logger *slog.Logger) *Client {
	return &Client{
		http:   &http.Client{},
		sel:    sel,
		port:   port,
		token:  token,
		logger: logger,
	}
}

// CheckIn posts the registration payload to the given server host and
// returns the server's policy and task list.
func (c *Client) CheckIn(ctx context.Context, addr string, req CheckinRequest) (CheckinResponse, error) {
	var resp CheckinResponse
	err := c.postJSON(ctx, addr, "/api/agent/checkin", checkinTimeout, req, &resp)
	if err != nil {
		return CheckinResponse{}, fmt.Errorf("check-in: %w", err)
	}
	return resp, nil
}

// CheckInWithRetry runs CheckIn under exponential backoff, re-selecting the
// server address between attempts so a stale cached address cannot pin the
// agent to a dead host. It gives up after maxCheckinAttempts.
func (c *Client) CheckInWithRetry(ctx context.Context, req CheckinRequest) (CheckinResponse, error) {
	var resp CheckinResponse

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxCheckinAttempts),
		ctx,
	)

	op := func() error {
		addr := c.sel.Select(ctx, false)
		var err error
		resp, err = c.CheckIn(ctx, addr, req)
		if err != nil {
			c.logger.Warn("check-in attempt failed", "addr", addr, "error", err)
			c.sel.Invalidate()
		}
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		return CheckinResponse{}, err
	}
	return resp, nil
}

// TaskActive reports whether the server still considers the task live.
// A definitive 404 or a cancelled flag means inactive; every transient
// failure reports active, so connectivity loss never cancels local work.
func (c *Client) TaskActive(ctx context.Context, addr, taskID string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet,
		c.endpoint(addr, "/api/dashboard/tasks/"+taskID), nil)
	if err != nil {
		return true
	}
	req.Header.Set("X-Agent-Token", c.token)

	httpResp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("task status query failed", "task_id", taskID, "error", err)
		return true
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return false
	}
	if httpResp.StatusCode != http.StatusOK {
		return true
	}

	var status struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 1<<20)).Decode(&status); err != nil {
		return true
	}
	return !status.Cancelled
}

// ReportHardware pushes a hardware inventory snapshot for this device.
func (c *Client) ReportHardware(ctx context.Context, addr, deviceID string, hw telemetry.Hardware) error {
	if err := c.postJSON(ctx, addr, "/api/hardware/"+deviceID+"/report", checkinTimeout, hw, nil); err != nil {
		return fmt.Errorf("hardware report: %w", err)
	}
	return nil
}

// postJSON sends body as JSON and optionally decodes the response into out.
func (c *Client) postJSON(ctx context.Context, addr, path string, timeout time.Duration, body, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		c.endpoint(addr, path), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(addr, path string) string {
	return "http://" + net.JoinHostPort(addr, c.port) + path
}
