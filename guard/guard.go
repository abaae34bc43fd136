package guard

import (
	"context"
	"net/url"

	goSession "github.com/MrEthical07/goSession"
)

// RedirectParam carries the intended destination through the login route.
const RedirectParam = "redirect"

// SessionView is the synchronous session state the guard reads.
type SessionView interface {
	IsAuthenticated() bool
	Role() (goSession.Role, bool)
}

// Observer is told about every decision.
type Observer interface {
	RecordNavigation(ctx context.Context, to string, outcome goSession.NavigationOutcome)
}

// Decision is the result of Check. Redirect is set unless the navigation is
// allowed.
type Decision struct {
	Outcome  goSession.NavigationOutcome
	Redirect string
	Route    string
}

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == goSession.NavigationAllowed
}

// Option configures a Guard.
type Option func(*Guard)

// WithLoginPath sets where unauthenticated users are sent. Default "/login".
func WithLoginPath(p string) Option {
	return func(g *Guard) {
		if p != "" {
			g.loginPath = p
		}
	}
}

// WithLandingPath sets where users lacking a role are sent. Default
// "/dashboard".
func WithLandingPath(p string) Option {
	return func(g *Guard) {
		if p != "" {
			g.landingPath = p
		}
	}
}

// WithObserver reports the outcome of every Check to o.
func WithObserver(o Observer) Option {
	return func(g *Guard) { g.observer = o }
}

// Guard applies the navigation decision table.
type Guard struct {
	session     SessionView
	table       *Table
	loginPath   string
	landingPath string
	observer    Observer
}

// New returns a Guard over session and table.
func New(session SessionView, table *Table, opts ...Option) *Guard {
	g := &Guard{
		session:     session,
		table:       table,
		loginPath:   "/login",
		landingPath: "/dashboard",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check decides the navigation to target (path plus optional query). It
// never performs I/O and never navigates.
func (g *Guard) Check(ctx context.Context, to string) Decision {
	d := g.decide(to)
	if g.observer != nil {
		g.observer.RecordNavigation(ctx, to, d.Outcome)
	}
	return d
}

func (g *Guard) decide(to string) Decision {
	m, ok := g.table.Match(to)
	if !ok {
		return Decision{Outcome: goSession.NavigationAllowed}
	}

	authenticated := g.session != nil && g.session.IsAuthenticated()
	if m.RequiresAuth && !authenticated {
		return Decision{
			Outcome:  goSession.NavigationLoginRequired,
			Redirect: g.loginPath + "?" + url.Values{RedirectParam: {to}}.Encode(),
			Route:    m.Name,
		}
	}

	if len(m.Roles) > 0 {
		role, known := goSession.Role(""), false
		if g.session != nil {
			role, known = g.session.Role()
		}
		if !known || !role.SatisfiesAny(m.Roles) {
			return Decision{
				Outcome:  goSession.NavigationRoleDenied,
				Redirect: g.landingPath,
				Route:    m.Name,
			}
		}
	}

	return Decision{Outcome: goSession.NavigationAllowed, Route: m.Name}
}

// LoginPath returns the configured login route.
func (g *Guard) LoginPath() string { return g.loginPath }

// LandingPath returns the configured landing route.
func (g *Guard) LandingPath() string { return g.landingPath }
