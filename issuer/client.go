package issuer

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

	"github.com/MrEthical07/goSession/credential"
)

var (
	// ErrRejected is returned when the issuer refuses a credential exchange.
	ErrRejected = errors.New("issuer: exchange rejected")
	// ErrIncompleteGrant is returned when a token response lacks either credential.
	ErrIncompleteGrant = errors.New("issuer: token response without access/refresh pair")
)

// StatusError reports an unexpected issuer response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("issuer: %s: unexpected status %d", e.Op, e.Status)
}

// TokenResponse is the issuer's token grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Pair converts the grant into a credential pair.
func (t TokenResponse) Pair() (credential.Pair, error) {
	if t.AccessToken == "" || t.RefreshToken == "" {
		return credential.Pair{}, ErrIncompleteGrant
	}
	return credential.Pair{Access: t.AccessToken, Refresh: t.RefreshToken}, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Config configures a Client.
type Config struct {
	// BaseURL is the issuer root, for example http://localhost:8000/api/v1/auth.
	BaseURL string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
	// DevRole is sent with the direct login exchange when non-empty.
	DevRole string
	// CallbackURL is passed to the authorize endpoint as redirect_uri.
	CallbackURL string
}

// Client talks to the authentication issuer.
type Client struct {
	base        *url.URL
	http        *http.Client
	devRole     string
	callbackURL string
}

// New returns a Client for cfg.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("issuer: base url required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("issuer: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("issuer: unsupported scheme %q", base.Scheme)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		base:        base,
		http:        hc,
		devRole:     cfg.DevRole,
		callbackURL: cfg.CallbackURL,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// DirectLogin performs the direct login exchange.
func (c *Client) DirectLogin(ctx context.Context) (credential.Pair, error) {
	var q url.Values
	if c.devRole != "" {
		q = url.Values{"role": {c.devRole}}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/dev-login", q), nil)
	if err != nil {
		return credential.Pair{}, fmt.Errorf("issuer: create login request: %w", err)
	}
	return c.grant(req, "login")
}

// ExchangeCode trades an authorization code from the browser redirect for a pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (credential.Pair, error) {
	if code == "" {
		return credential.Pair{}, ErrIncompleteGrant
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/callback", url.Values{"code": {code}}), nil)
	if err != nil {
		return credential.Pair{}, fmt.Errorf("issuer: create callback request: %w", err)
	}
	return c.grant(req, "callback")
}

// AuthorizeURL returns the browser entry point of the redirect handshake.
func (c *Client) AuthorizeURL() string {
	if c.callbackURL == "" {
		return c.endpoint("/login", nil)
	}
	return c.endpoint("/login", url.Values{"redirect_uri": {c.callbackURL}})
}

// Refresh exchanges a refresh credential for a new pair.
func (c *Client) Refresh(ctx context.Context, refresh string) (credential.Pair, error) {
	if refresh == "" {
		return credential.Pair{}, ErrRejected
	}
	req, err := c.jsonRequest(ctx, "/refresh", refreshRequest{RefreshToken: refresh})
	if err != nil {
		return credential.Pair{}, err
	}
	return c.grant(req, "refresh")
}

// Logout revokes the refresh credential. Callers treat failures as advisory.
func (c *Client) Logout(ctx context.Context, refresh string) error {
	req, err := c.jsonRequest(ctx, "/logout", refreshRequest{RefreshToken: refresh})
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("issuer: logout: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode/100 != 2 {
		return &StatusError{Op: "logout", Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) jsonRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("issuer: create %s request: %w", strings.TrimPrefix(path, "/"), err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) grant(req *http.Request, op string) (credential.Pair, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return credential.Pair{}, fmt.Errorf("issuer: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return credential.Pair{}, fmt.Errorf("issuer: %s: read body: %w", op, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return credential.Pair{}, fmt.Errorf("%w: %s returned %d", ErrRejected, op, resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return credential.Pair{}, &StatusError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return credential.Pair{}, fmt.Errorf("issuer: %s: decode: %w", op, err)
	}
	return tr.Pair()
}
