package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// errHeaderTimeout is the cancellation cause used when the provider does not
// send response headers within Config.Timeout.
var errHeaderTimeout = errors.New("timed out waiting for response headers")

// maxErrorBody caps how much of a non-2xx provider body is kept for errors.
const maxErrorBody = 4096

// ClientOptions tunes the shared connection pool.
type ClientOptions struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client opens streaming calls against the configured providers. It owns a
// single pooled http.Client that is safe for concurrent use. Client never
// retries: a failed open is reported to the caller as-is.
type Client struct {
	configs map[Kind]Config
	client  *http.Client

	healthMu sync.RWMutex
	health   map[Kind]*Health
}

// NewClient creates a Client for the given provider configs. The http.Client
// has no overall Timeout, since that would cut long-running streams; per-kind
// header timeouts are applied in Open.
func NewClient(configs []Config, opts ClientOptions) (*Client, error) {
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 100
	}
	if opts.MaxIdleConnsPerHost == 0 {
		opts.MaxIdleConnsPerHost = 10
	}
	if opts.IdleConnTimeout == 0 {
		opts.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		IdleConnTimeout:     opts.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		configs: make(map[Kind]Config, len(configs)),
		client:  &http.Client{Transport: transport},
		health:  make(map[Kind]*Health, len(configs)),
	}

	for _, cfg := range configs {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider %s: base url is required", cfg.Kind)
		}
		c.configs[cfg.Kind] = cfg
		c.health[cfg.Kind] = &Health{IsHealthy: true}
	}

	return c, nil
}

// Config returns the settings for kind.
func (c *Client) Config(kind Kind) (Config, bool) {
	cfg, ok := c.configs[kind]
	return cfg, ok
}

// Upstream is an open provider stream. Close must be called exactly once.
type Upstream struct {
	// Kind is the provider the stream came from.
	Kind Kind

	// Body is the raw SSE byte stream.
	Body io.ReadCloser

	// Latency is the time until response headers arrived.
	Latency time.Duration

	cancel context.CancelCauseFunc
}

// Close releases the upstream connection.
func (u *Upstream) Close() error {
	err := u.Body.Close()
	u.cancel(context.Canceled)
	return err
}

// Open sends the chat payload to the provider and returns the streaming
// response body. Any transport failure or non-2xx status is an *UpstreamError
// and leaves no open connection behind.
//
// The returned stream lives until ctx is cancelled or Close is called.
func (c *Client) Open(ctx context.Context, kind Kind, payload ChatPayload, apiKey string) (*Upstream, error) {
	cfg, ok := c.configs[kind]
	if !ok {
		return nil, &UpstreamError{Provider: kind.String(), Message: "provider not configured"}
	}

	reqCtx, cancel := context.WithCancelCause(ctx)

	req, err := BuildRequest(reqCtx, cfg, payload, apiKey)
	if err != nil {
		cancel(err)
		return nil, err
	}

	var headerTimer *time.Timer
	if cfg.Timeout > 0 {
		headerTimer = time.AfterFunc(cfg.Timeout, func() { cancel(errHeaderTimeout) })
	}

	slog.DebugContext(ctx, "opening provider stream",
		"provider", kind.String(),
		"model", cfg.Model,
	)

	start := time.Now()
	resp, err := c.client.Do(req)
	if headerTimer != nil && !headerTimer.Stop() && err == nil {
		// The timer fired after the response arrived but before Stop; the
		// request context is already cancelled, so the body is unusable.
		resp.Body.Close()
		err = errHeaderTimeout
	}
	latency := time.Since(start)

	if err != nil {
		timedOut := errors.Is(context.Cause(reqCtx), errHeaderTimeout) ||
			errors.Is(err, context.DeadlineExceeded)
		cancel(err)

		upErr := &UpstreamError{
			Provider: kind.String(),
			Message:  "request failed",
			Timeout:  timedOut,
			Cause:    stripURL(err),
		}
		if timedOut {
			upErr.Message = errHeaderTimeout.Error()
		}
		c.recordOpen(kind, upErr)
		return nil, upErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel(context.Canceled)

		upErr := &UpstreamError{
			Provider:   kind.String(),
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
		c.recordOpen(kind, upErr)

		slog.WarnContext(ctx, "provider returned error status",
			"provider", kind.String(),
			"status", resp.StatusCode,
		)
		return nil, upErr
	}

	c.recordOpen(kind, nil)

	return &Upstream{
		Kind:    kind,
		Body:    resp.Body,
		Latency: latency,
		cancel:  cancel,
	}, nil
}

// Health returns a snapshot of per-kind health.
func (c *Client) Health() map[string]Health {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()

	out := make(map[string]Health, len(c.health))
	for kind, h := range c.health {
		out[kind.String()] = *h
	}
	return out
}

// Close drops idle pooled connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// recordOpen updates health after an open attempt.
func (c *Client) recordOpen(kind Kind, err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	h, ok := c.health[kind]
	if !ok {
		return
	}

	h.TotalRequests++
	if err == nil {
		h.IsHealthy = true
		h.ConsecutiveFailures = 0
		h.LastError = ""
		h.LastSuccess = time.Now()
		return
	}

	h.FailedRequests++
	h.ConsecutiveFailures++
	h.LastError = err.Error()

	// Mark unhealthy after 3 consecutive failures
	if h.ConsecutiveFailures >= 3 && h.IsHealthy {
		h.IsHealthy = false
		slog.Warn("provider marked unhealthy",
			"provider", kind.String(),
			"consecutive_failures", h.ConsecutiveFailures,
		)
	}
}

// stripURL drops the request URL from transport errors. Gemini URLs carry
// the plaintext key in the query string.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
