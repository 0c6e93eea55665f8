// Package apiclient is the single HTTP gateway to the marketplace API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/pkg/model"
)

// Auth endpoint paths, relative to the API base URL.
const (
	PathLogin            = "/auth/login"
	PathRegister         = "/auth/register"
	PathLogout           = "/auth/logout"
	PathProfile          = "/auth/profile"
	PathSendVerification = "/auth/send-verification"
	PathVerifyEmail      = "/auth/verify-email"
)

// DefaultTimeout bounds every API call unless overridden with WithTimeout.
const DefaultTimeout = 15 * time.Second

// GenericErrorMessage is shown when a failure carries no usable message.
const GenericErrorMessage = "Something went wrong. Please try again."

// Client is an HTTP client for the marketplace API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	timeout   time.Duration
	transport http.RoundTripper
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTransport sets the transport underneath the auth interceptors.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// New creates a marketplace API client rooted at baseURL. tokens supplies
// the bearer token and is cleared when the server rejects it.
func New(baseURL string, tokens TokenSource, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	o := options{timeout: DefaultTimeout, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	logger = logging.OrDiscard(logger).With("component", "apiclient")
	transport := &unauthorizedTransport{
		next:   &bearerTransport{next: o.transport, tokens: tokens},
		tokens: tokens,
		exempt: map[string]bool{
			u.Path + PathLogin:    true,
			u.Path + PathRegister: true,
		},
		logger: logger,
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   o.timeout,
		},
		logger: logger,
	}, nil
}

// Do sends a JSON request to path and decodes the envelope's data into out
// (when out is non-nil). Failures come back as *model.APIError when the
// server answered, or as a wrapped transport error otherwise.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (*model.Envelope, error) {
	u := c.baseURL.JoinPath(path)

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("HTTP response", "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start).String())

	return decode(path, resp.StatusCode, respBody, out)
}

func decode(path string, status int, body []byte, out any) (*model.Envelope, error) {
	var raw struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	parseErr := json.Unmarshal(body, &raw)

	if status < 200 || status > 299 || (parseErr == nil && raw.Success != nil && !*raw.Success) {
		msg := model.ErrorMessage(body)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, &model.APIError{Status: status, Path: path, Message: msg}
	}
	if parseErr != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", status, parseErr)
	}

	env := &model.Envelope{Success: raw.Success == nil || *raw.Success, Message: raw.Message, Data: raw.Data}
	if out != nil && len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			return env, fmt.Errorf("decode %s data: %w", path, err)
		}
	}
	return env, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, out any) (*model.Envelope, error) {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) (*model.Envelope, error) {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// ErrorMessage reduces err to a message fit for display. Server messages are
// passed through verbatim; timeouts get their own wording; anything else
// becomes fallback (or GenericErrorMessage when fallback is empty).
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if fallback == "" {
		fallback = GenericErrorMessage
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return "The server did not respond in time. Please try again."
	}
	return fallback
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
