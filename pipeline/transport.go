package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// CorrelationHeader carries the per-request correlation id.
const CorrelationHeader = "X-Correlation-ID"

// ErrSessionEnded marks a failure surfaced after the session was ended
// because renewal failed.
var ErrSessionEnded = errors.New("pipeline: session ended")

// Session is the credential owner the transport reads from.
type Session interface {
	// AccessToken returns the credential to attach, if any.
	AccessToken(ctx context.Context) (string, bool)
	// Renew returns a credential newer than rejected, refreshing if needed.
	Renew(ctx context.Context, rejected string) (string, error)
	// RenewalFatal reports whether a Renew error means the credential is
	// gone, so the session must end.
	RenewalFatal(err error) bool
	// EndSession logs out and sends the user to the login entry point.
	EndSession(ctx context.Context)
}

// BeforeFunc runs before every send, including the replay.
type BeforeFunc func(req *http.Request, attempt *Attempt) error

// AfterFunc runs once on the response returned to the caller.
type AfterFunc func(resp *http.Response, attempt *Attempt)

// Observer is told about every completed originating request.
type Observer interface {
	RequestDone(ctx context.Context, attempt Attempt, status int, elapsed time.Duration)
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying RoundTripper. Defaults to http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) {
		if rt != nil {
			t.base = rt
		}
	}
}

// WithLimiter paces sends through l.
func WithLimiter(l *rate.Limiter) Option {
	return func(t *Transport) { t.limiter = l }
}

// WithBefore appends a pre-send hook.
func WithBefore(fn BeforeFunc) Option {
	return func(t *Transport) {
		if fn != nil {
			t.before = append(t.before, fn)
		}
	}
}

// WithAfter appends a post-response hook.
func WithAfter(fn AfterFunc) Option {
	return func(t *Transport) {
		if fn != nil {
			t.after = append(t.after, fn)
		}
	}
}

// WithObserver sets the request observer.
func WithObserver(o Observer) Option {
	return func(t *Transport) { t.observer = o }
}

// WithCorrelationIDs overrides the correlation id generator.
func WithCorrelationIDs(fn func() string) Option {
	return func(t *Transport) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// Transport attaches credentials and performs the single retry.
type Transport struct {
	session  Session
	base     http.RoundTripper
	limiter  *rate.Limiter
	before   []BeforeFunc
	after    []AfterFunc
	observer Observer
	newID    func() string
}

// NewTransport returns a Transport reading credentials from session.
func NewTransport(session Session, opts ...Option) *Transport {
	t := &Transport{
		session: session,
		base:    http.DefaultTransport,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempt, ok := AttemptFromContext(ctx)
	if !ok {
		attempt = &Attempt{}
		ctx = WithAttempt(ctx, attempt)
	}
	if attempt.CorrelationID == "" {
		attempt.CorrelationID = req.Header.Get(CorrelationHeader)
	}
	if attempt.CorrelationID == "" {
		attempt.CorrelationID = t.newID()
	}

	body, err := drainBody(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	token := ""
	if t.session != nil {
		token, _ = t.session.AccessToken(ctx)
	}

	resp, err := t.send(ctx, req, body, attempt, token)
	if err != nil {
		t.observe(ctx, attempt, 0, start)
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || attempt.Retried || t.session == nil {
		return t.finish(ctx, resp, attempt, start), nil
	}

	attempt.Retried = true
	fresh, err := t.session.Renew(ctx, token)
	switch {
	case (err == nil && fresh == "") || (err != nil && t.session.RenewalFatal(err)):
		attempt.SessionEnded = true
		t.session.EndSession(ctx)
		return t.finish(ctx, resp, attempt, start), nil
	case err != nil && ctx.Err() != nil:
		// The caller gave up; the renewal itself carries on without it.
		discard(resp)
		t.observe(ctx, attempt, 0, start)
		return nil, ctx.Err()
	case err != nil:
		return t.finish(ctx, resp, attempt, start), nil
	}
	attempt.Refreshed = true
	discard(resp)

	resp, err = t.send(ctx, req, body, attempt, fresh)
	if err != nil {
		t.observe(ctx, attempt, 0, start)
		return nil, err
	}
	return t.finish(ctx, resp, attempt, start), nil
}

func (t *Transport) send(ctx context.Context, orig *http.Request, body []byte, attempt *Attempt, token string) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pipeline: pacing: %w", err)
		}
	}

	out := orig.Clone(ctx)
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	out.Header.Set(CorrelationHeader, attempt.CorrelationID)
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	for _, fn := range t.before {
		if err := fn(out, attempt); err != nil {
			return nil, err
		}
	}
	attempt.Sends++
	return t.base.RoundTrip(out)
}

func (t *Transport) finish(ctx context.Context, resp *http.Response, attempt *Attempt, start time.Time) *http.Response {
	for _, fn := range t.after {
		fn(resp, attempt)
	}
	t.observe(ctx, attempt, resp.StatusCode, start)
	return resp
}

func (t *Transport) observe(ctx context.Context, attempt *Attempt, status int, start time.Time) {
	if t.observer != nil {
		t.observer.RequestDone(ctx, *attempt, status, time.Since(start))
	}
}

func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("pipeline: buffer request body: %w", err)
	}
	return data, nil
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
