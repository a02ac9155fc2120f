// Package gateway is the single HTTP entry point to the support backend.
// Every outgoing request carries the current identity headers, and transient
// failures are retried with a bounded, fixed-delay budget.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/minirag/supportchat/internal/domain"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 1 * time.Second

	headerSessionID = "X-Session-ID"
	headerCSRFToken = "X-CSRF-Token"
)

// Identity supplies the values attached to every outgoing request. Each
// value is optional; an empty string omits the corresponding header.
type Identity interface {
	SessionID() string
	AuthToken() string
	CSRFToken() string
}

// RequestHook runs against every outgoing request before dispatch. Hooks run
// in registration order, on every attempt, so header values are re-derived
// after a retry delay.
type RequestHook func(r *http.Request)

// ResponseHook runs against every received response before it is examined.
type ResponseHook func(r *http.Response)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout sets the global request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets the per-request retry budget.
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTracing wraps the transport with OpenTelemetry instrumentation.
func WithTracing() ClientOption {
	return func(c *Client) {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.httpClient.Transport = otelhttp.NewTransport(base)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestHook appends a pre-request hook.
func WithRequestHook(hook RequestHook) ClientOption {
	return func(c *Client) {
		c.requestHooks = append(c.requestHooks, hook)
	}
}

// WithResponseHook appends a post-response hook.
func WithResponseHook(hook ResponseHook) ClientOption {
	return func(c *Client) {
		c.responseHooks = append(c.responseHooks, hook)
	}
}

// Client issues authenticated, retryable requests against the backend.
type Client struct {
	baseURL       string
	identity      Identity
	httpClient    *http.Client
	maxRetries    int
	retryDelay    time.Duration
	requestHooks  []RequestHook
	responseHooks []ResponseHook
	logger        *slog.Logger
}

// New creates a client rooted at baseURL. Identity headers are read from
// identity at dispatch time on every attempt, so rotated credentials are
// honored when a request is reissued.
func New(baseURL string, identity Identity, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		identity:   identity,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		logger:     slog.Default(),
	}
	// Identity headers are injected by the first hook; caller-supplied
	// hooks run after it and may override.
	c.requestHooks = append(c.requestHooks, c.identityHook)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON sends a JSON body and decodes a JSON response into out (when out
// is non-nil).
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	return c.Do(ctx, http.MethodPost, path, "application/json", payload, out)
}

// Do issues a request with the given body, retrying transient failures up to
// the configured budget. The body is buffered so a reissued attempt sends the
// exact same payload; headers are rebuilt per attempt. On failure the
// returned error is always a *domain.APIError.
func (c *Client) Do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	url := c.baseURL + path

	var lastErr *domain.APIError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Unreachable(ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}

		respBody, apiErr := c.attempt(ctx, method, url, contentType, body)
		if apiErr == nil {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return &domain.APIError{
					Type:   domain.ErrorTypeInvalidRequest,
					Detail: fmt.Sprintf("failed to decode response: %v", err),
				}
			}
			return nil
		}

		lastErr = apiErr
		if !apiErr.Retryable() {
			return apiErr
		}

		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", c.maxRetries+1),
			slog.Int("status", apiErr.StatusCode),
			slog.String("error", apiErr.Detail),
		)
	}

	c.logger.Error("request exhausted retry budget",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("attempts", c.maxRetries+1),
		slog.String("error", lastErr.Error()),
	)
	return lastErr
}

// attempt issues one request. A nil *domain.APIError means success and the
// returned bytes are the response body.
func (c *Client) attempt(ctx context.Context, method, url, contentType string, body []byte) ([]byte, *domain.APIError) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &domain.APIError{
			Type:   domain.ErrorTypeInvalidRequest,
			Detail: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, hook := range c.requestHooks {
		hook(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Unreachable(err)
	}
	defer resp.Body.Close()

	for _, hook := range c.responseHooks {
		hook(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Unreachable(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return nil, domain.FromResponse(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// identityHook attaches the current session, bearer, and anti-forgery
// headers. Each is independently omitted when its value is absent.
func (c *Client) identityHook(req *http.Request) {
	if c.identity == nil {
		return
	}
	if sessionID := c.identity.SessionID(); sessionID != "" {
		req.Header.Set(headerSessionID, sessionID)
	}
	if token := c.identity.AuthToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf := c.identity.CSRFToken(); csrf != "" {
		req.Header.Set(headerCSRFToken, csrf)
	}
}
