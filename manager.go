package goSession

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/pipeline"
	"golang.org/x/sync/singleflight"
)

// schemaStorage is a Storage that must prepare its schema before first use.
type schemaStorage interface {
	EnsureSchema(ctx context.Context) error
}

// Issuer is the external authentication issuer.
type Issuer interface {
	DirectLogin(ctx context.Context) (credential.Pair, error)
	AuthorizeURL() string
	Refresh(ctx context.Context, refresh string) (credential.Pair, error)
	Logout(ctx context.Context, refresh string) error
}

// Navigator performs hard navigations outside the in-app router: to the
// issuer's authorize URL on redirect login, and to the login route when a
// session ends.
type Navigator interface {
	HardNavigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string) error

// HardNavigate calls f(ctx, target).
func (f NavigatorFunc) HardNavigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// CallbackSource yields the credential pair delivered by the issuer's
// redirect callback.
type CallbackSource interface {
	Await(ctx context.Context) (credential.Pair, error)
}

// Manager owns the credential store and the session lifecycle. Exactly one
// Manager exists per client instance. Methods are safe for concurrent use
// after Builder.Build.
type Manager struct {
	config    Config
	logger    *slog.Logger
	storage   credential.Storage
	store     *credential.Store
	issuer    Issuer
	profiles  ProfileSource
	validator *profileValidator
	navigator Navigator
	callbacks CallbackSource
	transport *pipeline.Transport
	api       *pipeline.Client
	flows     flows.Deps
	audit     *auditQueue
	metrics   *Metrics
	closers   []io.Closer
	now       func() time.Time

	refreshGroup singleflight.Group
	// lifecycle serializes credential installs and clears against the epoch.
	lifecycle sync.Mutex
	// logoutMu makes concurrent logouts revoke once.
	logoutMu sync.Mutex
	epoch    atomic.Uint64
	// ended is set once the current session has been ended and the hard
	// navigation issued. A newly installed session resets it.
	ended      atomic.Bool
	refreshing atomic.Bool
	closed     atomic.Bool

	mu           sync.RWMutex
	state        State
	profile      *UserProfile
	sessionID    string
	lastLoginErr string
}

// IsAuthenticated reports whether an access credential is held.
func (m *Manager) IsAuthenticated() bool {
	return m != nil && m.store.IsAuthenticated()
}

// Role returns the profile role. ok is false while no profile is loaded.
func (m *Manager) Role() (Role, bool) {
	if m == nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return "", false
	}
	return m.profile.Role, true
}

// Profile returns a copy of the loaded profile.
func (m *Manager) Profile() (UserProfile, bool) {
	if m == nil {
		return UserProfile{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return UserProfile{}, false
	}
	return m.profile.clone(), true
}

// IsAdmin reports whether the loaded profile holds the admin role.
func (m *Manager) IsAdmin() bool {
	r, ok := m.Role()
	return ok && r.Satisfies(RoleAdmin)
}

// IsReviewer reports whether the loaded profile satisfies the reviewer role.
// Admins are reviewers.
func (m *Manager) IsReviewer() bool {
	r, ok := m.Role()
	return ok && r.Satisfies(RoleReviewer)
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	if m == nil {
		return StateAnonymous
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Info returns a snapshot of the session without credential values.
func (m *Manager) Info() SessionInfo {
	if m == nil {
		return SessionInfo{}
	}
	access := m.store.Access()

	m.mu.RLock()
	info := SessionInfo{
		State:             m.state,
		Authenticated:     access != "",
		SessionID:         m.sessionID,
		RefreshInProgress: m.refreshing.Load(),
		StorageDegraded:   m.store.Degraded(),
		LastLoginError:    m.lastLoginErr,
	}
	if m.profile != nil {
		p := m.profile.clone()
		info.Profile = &p
	}
	m.mu.RUnlock()

	info.AccessExpiresAt = accessExpiry(access)
	return info
}

// API returns the request pipeline bound to this session.
func (m *Manager) API() *pipeline.Client {
	if m == nil {
		return nil
	}
	return m.api
}

// Transport returns the pipeline RoundTripper for callers that build their
// own http.Client.
func (m *Manager) Transport() *pipeline.Transport {
	if m == nil {
		return nil
	}
	return m.transport
}

// Close drains the audit queue and releases owned resources. The
// session itself is left as is.
func (m *Manager) Close() {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return
	}
	if m.audit != nil {
		m.audit.Close()
	}
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			m.logger.Warn("goSession: close resource failed", slog.Any("error", err))
		}
	}
}

// AuditDropped returns the number of audit events that never reached the
// sink. With metrics enabled the same count is MetricAuditDropped.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process metrics.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

func (m *Manager) ready() bool {
	return m != nil && !m.closed.Load()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// transition moves from one of from to to and reports whether it did.
func (m *Manager) transition(to State, from ...State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range from {
		if m.state == f {
			m.state = to
			return true
		}
	}
	return false
}

func (m *Manager) currentSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}
