// Package client is a small HTTP client for the agent API: it submits
// probe tasks and polls for their results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrPollTimeout is returned by WaitForResult when the task does not
// reach a terminal status before the caller's deadline. The task keeps
// running server-side; only the wait gives up.
var ErrPollTimeout = errors.New("timed out waiting for task result")

// Receipt is the server's acknowledgement of an enqueued task
type Receipt struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Name   string `json:"name"`
}

// TaskResult is the polled lifecycle projection of a task
type TaskResult struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Terminal reports whether the task finished (successfully or not)
func (r *TaskResult) Terminal() bool {
	return r.Status == "SUCCESS" || r.Status == "FAILURE"
}

// Config holds client configuration
type Config struct {
	BaseURL      string
	Timeout      time.Duration // per-request HTTP timeout
	PollInterval time.Duration // result polling cadence
}

// Client talks to the agent API
type Client struct {
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
}

// New creates a new client instance
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		pollInterval: cfg.PollInterval,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SubmitDNSQuery enqueues a DNS resolution probe
func (c *Client) SubmitDNSQuery(ctx context.Context, domain string) (*Receipt, error) {
	return c.submit(ctx, "/api/tasks/dns", map[string]string{"domain": domain})
}

// SubmitPortScan enqueues a TCP port scan probe
func (c *Client) SubmitPortScan(ctx context.Context, domain string, fromPort, toPort int) (*Receipt, error) {
	return c.submit(ctx, "/api/tasks/ports/scan", map[string]interface{}{
		"domain":    domain,
		"from_port": fromPort,
		"to_port":   toPort,
	})
}

// SubmitHTTPRequest enqueues an outbound HTTP request probe
func (c *Client) SubmitHTTPRequest(ctx context.Context, req map[string]interface{}) (*Receipt, error) {
	return c.submit(ctx, "/api/tasks/http/request", req)
}

// submit posts a request body and decodes the receipt
func (c *Client) submit(ctx context.Context, path string, body interface{}) (*Receipt, error) {
	var receipt Receipt
	if err := c.post(ctx, path, body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetResult polls the current lifecycle state of a task once
func (c *Client) GetResult(ctx context.Context, taskID string) (*TaskResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/tasks/result/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build result request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query task result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("result query returned status %d", resp.StatusCode)
	}

	var result TaskResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode task result: %w", err)
	}
	return &result, nil
}

// WaitForResult polls until the task reaches a terminal status or the
// context expires. A context deadline maps to ErrPollTimeout.
func (c *Client) WaitForResult(ctx context.Context, taskID string) (*TaskResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		result, err := c.GetResult(ctx, taskID)
		if err == nil && result.Terminal() {
			return result, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrPollTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// post sends a JSON body and decodes a JSON response into out
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
