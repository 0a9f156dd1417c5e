// Package copperx is the single point of outbound communication with the
// Copperx payout API: authenticated JSON calls with bounded retries and a
// normalized error surface.
package copperx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	coreconfig "github.com/m3rciful/payoutbot/core/config"
	"github.com/m3rciful/payoutbot/core/logger"
	"github.com/m3rciful/payoutbot/core/netutil"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultDialTimeout    = 5 * time.Second
	// maxRetries counts attempts beyond the first.
	maxRetries = 3
)

// HeaderOrganization scopes a request to one Copperx organization.
const HeaderOrganization = "X-Organization-ID"

// Client issues authenticated requests against the Copperx API base URL.
// A bearer token set via SetAccessToken is attached to every call unless the
// caller overrides the Authorization header explicitly.
type Client struct {
	base    string
	http    *http.Client
	backoff time.Duration

	mu    sync.RWMutex
	token string
}

// New builds a Client from configuration. The underlying transport dials
// IPv4 only; some hosting providers resolve the API host to unroutable
// IPv6 addresses (deployment constraint, not a correctness requirement).
func New(cfg coreconfig.CopperxConfig) *Client {
	timeout := defaultRequestTimeout
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}

	dialer := &net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
		backoff: time.Second,
	}
}

// SetAccessToken replaces the bearer token attached to subsequent calls.
// An empty token reverts the client to unauthenticated mode.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// AccessToken returns the currently stored bearer token.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) get(ctx context.Context, path string, headers map[string]string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, path, nil, headers)
}

func (c *Client) post(ctx context.Context, path string, body any, headers map[string]string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, path, body, headers)
}

func (c *Client) put(ctx context.Context, path string, body any, headers map[string]string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPut, path, body, headers)
}

// request performs one API call with up to maxRetries additional attempts on
// network failures and 5xx responses. Backoff grows linearly with the attempt
// number. The only persistent side effect lives here: a 401 clears the stored
// access token.
func (c *Client) request(ctx context.Context, method, path string, body any, headers map[string]string) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("copperx: encode request body: %w", err)
		}
	}

	rid := uuid.NewString()
	start := time.Now()

	var lastErr error
	attempts := maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, retryable, err := c.do(ctx, method, path, payload, headers, rid)
		if err == nil {
			logger.Debug(ctx, "api", "request.ok",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempts", attempt),
				slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
			)
			return raw, nil
		}
		lastErr = err
		if !retryable || attempt == attempts {
			break
		}

		delay := c.backoff * time.Duration(attempt)
		logger.Debug(ctx, "api", "request.retry",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempts", attempt),
			slog.Int64("backoff_ms", delay.Milliseconds()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &APIError{Message: ctx.Err().Error(), Network: true}
		case <-timer.C:
		}
	}

	logger.Warn(ctx, "api", "request.failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
		slog.String("err", logger.SanitizeLimit(lastErr.Error(), 256)),
	)
	return nil, lastErr
}

// do performs a single attempt. The bool result reports whether the failure
// is retryable.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, headers map[string]string, rid string) (json.RawMessage, bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, false, fmt.Errorf("copperx: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", rid)
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	// Caller-provided headers may add org scoping or override the bearer.
	for k, v := range headers {
		if v == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		retryable := netutil.ShouldRetry(err)
		return nil, retryable, &APIError{Message: err.Error(), Network: true}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, netutil.ShouldRetry(err), &APIError{Message: err.Error(), Network: true}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, false, nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.SetAccessToken("")
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: responseMessage(data, resp.Status)}
	return nil, resp.StatusCode >= 500, apiErr
}

// responseMessage extracts a human-readable message from an error body.
// Priority: body "message" field, then the HTTP status text.
func responseMessage(body []byte, fallback string) string {
	var envelope struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := decodeMessage(envelope.Message); msg != "" {
			return msg
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return fallback
}

// decodeMessage accepts both "message": "text" and "message": ["text", ...].
func decodeMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return ""
}

// unwrapData returns the payload of an {status, data} envelope, or the raw
// body itself when the API responds without the envelope.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return envelope.Data
	}
	return raw
}

// bearerHeader builds an Authorization override for calls that carry an
// explicit token instead of the client-stored one.
func bearerHeader(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}
