// Package api talks to the remote analysis service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shhac/verifai/internal/protocol"
)

// MaxContentLength is the longest text, in characters, the service accepts.
const MaxContentLength = 10000

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

var (
	ErrEmptyContent   = errors.New("content is empty")
	ErrContentTooLong = fmt.Errorf("content exceeds %d characters", MaxContentLength)
)

// Error is the uniform failure for any unsuccessful call: non-2xx status,
// transport error or unreadable body. Message is what the user sees.
type Error struct {
	Message    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Client posts text to the analysis endpoint.
type Client struct {
	http     *http.Client
	endpoint func() string
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request. Zero leaves the bound to the caller's ctx.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client. endpoint is called once per request, so a
// changed setting applies to the next analysis.
func NewClient(endpoint func() string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{},
		endpoint: endpoint,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StaticEndpoint adapts a fixed URL to NewClient.
func StaticEndpoint(u string) func() string {
	return func() string { return u }
}

// Analyze submits content and returns the service's result. There is no
// retry: a failed call is reported once.
func (c *Client) Analyze(ctx context.Context, content string) (*protocol.AnalysisResult, error) {
	if err := validateContent(content); err != nil {
		return nil, &Error{Message: err.Error(), Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.endpoint()
	body, err := json.Marshal(protocol.AnalysisRequest{Content: content})
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to encode request: %v", err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("analysis request failed", "endpoint", endpoint, "error", err)
		return nil, &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("analysis response", "endpoint", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &Error{
			Message:    "API error: " + statusLine(resp),
			StatusCode: resp.StatusCode,
		}
	}

	var result protocol.AnalysisResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return nil, &Error{
			Message:    fmt.Sprintf("invalid response: %v", err),
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	return &result, nil
}

// Health checks the service's /health endpoint, derived from the analysis
// endpoint's scheme and host.
func (c *Client) Health(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	healthURL, err := HealthURL(c.endpoint())
	if err != nil {
		return &Error{Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return &Error{Message: err.Error(), Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Message: "API error: " + statusLine(resp), StatusCode: resp.StatusCode}
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&status); err != nil {
		return &Error{Message: fmt.Sprintf("invalid health response: %v", err), StatusCode: resp.StatusCode, Err: err}
	}
	if status.Status != "ok" {
		return &Error{Message: fmt.Sprintf("service reports status %q", status.Status), StatusCode: resp.StatusCode}
	}
	return nil
}

// HealthURL maps an analysis endpoint onto the service's health endpoint.
func HealthURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q", endpoint)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/health"}).String(), nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// statusLine renders "500 Internal Server Error" style text. resp.Status
// already has that shape for real servers; it is rebuilt when empty.
func statusLine(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
