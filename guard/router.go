package guard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ErrRedirectLoop is returned when guard redirects do not settle.
var ErrRedirectLoop = errors.New("guard: too many redirects")

// DefaultMaxRedirects bounds the redirects a single navigation follows.
const DefaultMaxRedirects = 5

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithMaxRedirects bounds how many guard redirects one navigation may follow.
// Non-positive values keep the default.
func WithMaxRedirects(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.maxRedirects = n
		}
	}
}

// WithStart sets the initial location without running the guard.
func WithStart(path string) RouterOption {
	return func(r *Router) { r.current = path }
}

// WithExternalNavigator receives hard navigations to absolute URLs, such as
// the issuer's authorize endpoint.
func WithExternalNavigator(fn func(ctx context.Context, target string) error) RouterOption {
	return func(r *Router) { r.external = fn }
}

// Router commits guarded navigations and keeps the in-app history.
type Router struct {
	guard        *Guard
	maxRedirects int
	external     func(ctx context.Context, target string) error

	mu       sync.Mutex
	current  string
	history  []string
	lastHard string
	hardNavs int
}

// NewRouter returns a Router driven by g, starting at "/".
func NewRouter(g *Guard, opts ...RouterOption) *Router {
	r := &Router{
		guard:        g,
		maxRedirects: DefaultMaxRedirects,
		current:      "/",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Push navigates to to, following guard redirects, and appends the final
// location to the history. It returns the committed location.
func (r *Router) Push(ctx context.Context, to string) (string, error) {
	return r.navigate(ctx, to, false)
}

// Replace is Push without a new history entry.
func (r *Router) Replace(ctx context.Context, to string) (string, error) {
	return r.navigate(ctx, to, true)
}

func (r *Router) navigate(ctx context.Context, to string, replace bool) (string, error) {
	target := to
	for redirects := 0; ; redirects++ {
		d := r.guard.Check(ctx, target)
		if d.Allowed() {
			break
		}
		if redirects >= r.maxRedirects {
			return "", fmt.Errorf("%w: %s", ErrRedirectLoop, to)
		}
		target = d.Redirect
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !replace && r.current != "" {
		r.history = append(r.history, r.current)
	}
	r.current = target
	return target, nil
}

// Current returns the committed location.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History returns the previously committed locations, oldest first.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Back pops the history. It reports false when the history is empty.
func (r *Router) Back(ctx context.Context) (string, bool, error) {
	r.mu.Lock()
	if len(r.history) == 0 {
		r.mu.Unlock()
		return "", false, nil
	}
	prev := r.history[len(r.history)-1]
	r.history = r.history[:len(r.history)-1]
	r.mu.Unlock()

	loc, err := r.navigate(ctx, prev, true)
	return loc, err == nil, err
}

// ResumeAfterLogin goes to the destination preserved in the current
// location's redirect parameter, or to the landing route. Only local
// absolute paths are honored.
func (r *Router) ResumeAfterLogin(ctx context.Context) (string, error) {
	target := r.guard.LandingPath()
	if dest, ok := redirectTarget(r.Current()); ok {
		target = dest
	}
	return r.navigate(ctx, target, true)
}

// HardNavigate discards the in-app history and lands on target. Absolute
// URLs are handed to the external navigator. It implements the session
// Manager's Navigator.
func (r *Router) HardNavigate(ctx context.Context, target string) error {
	r.mu.Lock()
	r.history = nil
	r.lastHard = target
	r.hardNavs++
	if isLocal(target) {
		r.current = target
	}
	ext := r.external
	r.mu.Unlock()

	if !isLocal(target) && ext != nil {
		return ext(ctx, target)
	}
	return nil
}

// HardNavigations returns how many hard navigations happened and the last
// target.
func (r *Router) HardNavigations() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hardNavs, r.lastHard
}

func redirectTarget(location string) (string, bool) {
	i := strings.IndexByte(location, '?')
	if i < 0 {
		return "", false
	}
	q, err := url.ParseQuery(location[i+1:])
	if err != nil {
		return "", false
	}
	dest := q.Get(RedirectParam)
	if !isLocal(dest) {
		return "", false
	}
	return dest, true
}

// isLocal accepts "/path" but not "//host", "/\host" or absolute URLs.
func isLocal(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
