package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// ClientConfig configures the HTTP transport client.
type ClientConfig struct {
	// Timeout bounds one buffered exchange. Streaming requests use it only
	// for connection establishment. Default 60s.
	Timeout time.Duration

	// MaxRetries is the retry budget for transient failures (network errors
	// and 5xx responses) on buffered requests. Streaming requests are never
	// retried. Default 2.
	MaxRetries int

	// MaxIdleConns and MaxIdleConnsPerHost tune the connection pool.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client is the net/http implementation of Transport and Streamer, with
// connection pooling and bounded exponential-backoff retries.
type Client struct {
	cfg    ClientConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a pooled HTTP transport client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 10
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		cfg: cfg,
		// No client-level timeout: it would cut long-lived streams short.
		// Buffered exchanges are bounded per request via context.
		client: &http.Client{Transport: transport},
		logger: slog.Default().With("component", "transport"),
	}
}

// Do performs one buffered exchange. Transient failures (network errors and
// 5xx responses) are retried with exponential backoff up to the configured
// budget; the last response obtained is returned even when its status is an
// error, so translators can extract the provider's error payload.
func (c *Client) Do(ctx context.Context, req *Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var lastResp Response
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.logger.Debug("retrying request",
				"url", req.URL,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				if lastResp != nil {
					return lastResp, nil
				}
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.once(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		if resp.Status() >= 500 && attempt < c.cfg.MaxRetries {
			lastResp = resp
			c.logger.Warn("server error, will retry",
				"url", req.URL,
				"status", resp.Status(),
				"attempt", attempt+1,
			)
			continue
		}
		return resp, nil
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

// once performs a single buffered attempt.
func (c *Client) once(ctx context.Context, req *Request) (Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return NewResponse(resp.StatusCode, resp.Header, body), nil
}

// Open performs a streaming exchange and returns the framed chunk stream.
// A non-2xx status is returned as a StatusError carrying the error body, so
// the caller can normalize the provider's error payload.
func (c *Client) Open(ctx context.Context, req *Request) (Stream, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Framing != FramingLines {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	switch req.Framing {
	case FramingLines:
		return newLineStream(resp.Body), nil
	default:
		return newSSEStream(resp.Body), nil
	}
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// build assembles the http.Request from the wire request.
func (c *Client) build(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// StatusError reports a streaming request rejected before any chunk arrived.
type StatusError struct {
	// Status is the HTTP status code.
	Status int

	// Body is the error response body.
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("stream rejected with status %d: %s", e.Status, e.Body)
}
