package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 1 << 20

// APIError is returned by Client for non-2xx responses.
type APIError struct {
	Method        string
	Path          string
	Status        int
	Body          []byte
	CorrelationID string
	SessionEnded  bool
}

func (e *APIError) Error() string {
	if e.SessionEnded {
		return fmt.Sprintf("pipeline: %s %s: status %d (session ended)", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("pipeline: %s %s: status %d", e.Method, e.Path, e.Status)
}

// Is reports ErrSessionEnded for failures surfaced after the session ended.
func (e *APIError) Is(target error) bool {
	return target == ErrSessionEnded && e.SessionEnded
}

// Unauthorized reports whether the final response was 401.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// Detail returns the server's "detail" message when the body carries one.
func (e *APIError) Detail() string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(e.Body, &payload); err != nil || payload.Detail == nil {
		return ""
	}
	if s, ok := payload.Detail.(string); ok {
		return s
	}
	b, _ := json.Marshal(payload.Detail)
	return string(b)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the overall per-request timeout of the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// Client issues JSON requests against the portal API through a Transport.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

// NewClient returns a Client rooted at baseURL, for example
// http://localhost:8000/api/v1.
func NewClient(baseURL string, transport http.RoundTripper, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("pipeline: unsupported scheme %q", base.Scheme)
	}
	if transport == nil {
		return nil, errors.New("pipeline: nil transport")
	}
	c := &Client{
		base: base,
		http: &http.Client{Transport: transport},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when
// non-nil). Non-2xx responses become *APIError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	return c.do(ctx, method, path, nil, in, out)
}

// Get decodes GET path?query into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends in with POST and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, in, out)
}

// Put sends in with PUT and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, in, out)
}

// Patch sends in with PATCH and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, in, out)
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) url(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("pipeline: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	attempt, ok := AttemptFromContext(ctx)
	if !ok {
		attempt = &Attempt{}
		ctx = WithAttempt(ctx, attempt)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return fmt.Errorf("pipeline: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pipeline: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:        method,
			Path:          path,
			Status:        resp.StatusCode,
			Body:          data,
			CorrelationID: attempt.CorrelationID,
			SessionEnded:  attempt.SessionEnded,
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pipeline: decode %s %s: %w", method, path, err)
	}
	return nil
}
