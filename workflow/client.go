package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/errors"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
)

// Executor starts a synchronous workflow execution and returns its raw
// output document.
type Executor interface {
	StartSyncExecution(ctx context.Context, name string, input []byte) ([]byte, error)
}

// Config holds the connection settings for the remote workflow engine.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to the workflow engine over HTTP with basic auth. It
// implements Executor.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a workflow client. A zero Timeout defaults to 30s.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logging.WithComponent("workflow"),
	}
}

type executionResponse struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

// StartSyncExecution runs the named workflow to completion and returns its
// output payload.
func (c *Client) StartSyncExecution(ctx context.Context, name string, input []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v1/workflows/%s/executions?wait=true", c.cfg.BaseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("build execution request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: workflow engine unreachable: %v", errors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read execution response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: workflow engine returned %d: %s", errors.ErrUnavailable, resp.StatusCode, truncate(body, 256))
	}

	var exec executionResponse
	if err := json.Unmarshal(body, &exec); err != nil {
		return nil, fmt.Errorf("decode execution response: %w", err)
	}
	if exec.Status != "" && exec.Status != "completed" {
		return nil, fmt.Errorf("%w: execution finished with status %s: %s", errors.ErrInternal, exec.Status, exec.Error)
	}

	c.logger.Debug("workflow execution finished",
		"workflow", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if len(exec.Output) > 0 {
		return exec.Output, nil
	}
	return body, nil
}

// Ping checks reachability of the workflow engine.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/v1/health", nil)
	if err != nil {
		return err
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", errors.ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
