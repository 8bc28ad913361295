// Package upstream calls the external completion service.
//
// FILES:
//   - client.go:  API client, request construction, failure taxonomy mapping
//   - pacer.go:   process-wide minimum-interval call pacing
//   - extract.go: answer extraction from the response envelope
//   - errors.go:  CallError and FailureKind
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"

	"github.com/costoptimizer/chat-relay/internal/config"
)

// Client calls the completion service. Safe for concurrent use; the
// shared pacer spaces dispatches across all connections.
type Client struct {
	endpoint   string
	apiKey     string
	agentID    string
	userID     string
	timeout    time.Duration
	pacer      *Pacer
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout overrides the per-call deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		client.timeout = timeout
	}
}

// NewClient creates a completion client from configuration. The pacer is
// shared process-wide and must not be nil.
func NewClient(cfg config.UpstreamConfig, pacer *Pacer, opts ...Option) *Client {
	c := &Client{
		endpoint: cfg.URL,
		apiKey:   cfg.APIKey,
		agentID:  cfg.AgentID,
		userID:   cfg.UserID,
		timeout:  cfg.Timeout.Std(),
		pacer:    pacer,
		// No Timeout on the http.Client itself; the per-call context
		// carries the deadline so timeouts map cleanly to FailureTimeout.
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends one prompt and returns the extracted answer text. Every
// call uses a fresh correlation identifier; calls are context-free from
// the upstream's perspective. Failures are returned as *CallError and are
// never retried here.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if _, err := c.pacer.Wait(ctx); err != nil {
		return "", &CallError{Kind: FailureTransport, Err: fmt.Errorf("canceled while pacing: %w", err)}
	}

	callID := uuid.NewString()
	payload, err := c.buildPayload(callID, prompt)
	if err != nil {
		return "", &CallError{Kind: FailureTransport, Err: fmt.Errorf("building payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &CallError{Kind: FailureTransport, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	log.Debug().
		Str("call_id", callID).
		Int("prompt_chars", len(prompt)).
		Msg("dispatching upstream call")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &CallError{Kind: FailureTimeout, Timeout: c.timeout, Err: err}
		}
		return "", &CallError{Kind: FailureTransport, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxUpstreamResponseSize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &CallError{Kind: FailureTimeout, Timeout: c.timeout, Err: err}
		}
		return "", &CallError{Kind: FailureTransport, Err: fmt.Errorf("reading response: %w", err)}
	}

	log.Debug().
		Str("call_id", callID).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("upstream call finished")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ExtractAnswer(body), nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retry := config.DefaultRetryAfterSeconds
		if v, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && v > 0 {
			retry = v
		}
		return "", &CallError{Kind: FailureRateLimited, Status: resp.StatusCode, RetryAfter: retry, Body: string(body)}
	default:
		return "", &CallError{Kind: FailureStatus, Status: resp.StatusCode, Body: string(body)}
	}
}

// buildPayload assembles the upstream request envelope. session_id embeds
// a fresh uuid so identifiers never repeat across calls or sessions.
func (c *Client) buildPayload(callID, prompt string) ([]byte, error) {
	payload := []byte(`{}`)
	var err error
	for _, field := range []struct {
		path  string
		value string
	}{
		{"user_id", c.userID},
		{"agent_id", c.agentID},
		{"session_id", c.agentID + "-" + callID},
		{"message", prompt},
	} {
		payload, err = sjson.SetBytes(payload, field.path, field.value)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}
