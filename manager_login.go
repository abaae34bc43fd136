package goSession

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/oklog/ulid/v2"
)

// Restore rehydrates the session from storage. When a credential pair was
// persisted the session becomes Authenticated and the profile is fetched; a
// profile failure is returned while the credential is kept.
func (m *Manager) Restore(ctx context.Context) error {
	if !m.ready() {
		return ErrManagerNotReady
	}
	if s, ok := m.storage.(schemaStorage); ok {
		if err := s.EnsureSchema(ctx); err != nil {
			m.logger.Warn("goSession: prepare credential storage failed", slog.String("error", err.Error()))
		}
	}
	pair := m.store.Load(ctx)
	if !pair.Authenticated() {
		m.setState(StateAnonymous)
		return nil
	}

	m.lifecycle.Lock()
	m.epoch.Add(1)
	m.beginSession()
	m.lifecycle.Unlock()

	m.logger.Info("goSession: session restored", slog.String("session_id", m.currentSessionID()))
	return m.FetchProfile(ctx)
}

// Login runs the configured handshake. A handshake that yields no pair
// leaves the session Anonymous and returns nil; the reason is kept in
// SessionInfo.LastLoginError. Transport or issuer errors are returned
// wrapped in ErrLoginFailed.
func (m *Manager) Login(ctx context.Context) error {
	if !m.ready() {
		return ErrManagerNotReady
	}
	m.mu.Lock()
	m.state = StateAuthenticating
	m.lastLoginErr = ""
	m.mu.Unlock()

	res := flows.RunLogin(ctx, m.flows.Login)
	switch {
	case res.Deferred:
		m.settleState()
		m.logger.Info("goSession: login handed to issuer")
		return nil
	case res.Failure == flows.LoginFailureNoPair:
		m.loginFailed(ctx, res.Err)
		return nil
	case res.Err != nil:
		m.loginFailed(ctx, res.Err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, res.Err)
	}
	return m.completeLogin(ctx, res.Pair, string(m.config.Login.Mode))
}

// HandleCallback installs a pair delivered by the issuer's redirect callback
// and fetches the profile.
func (m *Manager) HandleCallback(ctx context.Context, access, refresh string) error {
	if !m.ready() {
		return ErrManagerNotReady
	}
	if access == "" || refresh == "" {
		m.loginFailed(ctx, credential.ErrEmptyCredential)
		return fmt.Errorf("%w: %w", ErrLoginFailed, credential.ErrEmptyCredential)
	}
	m.setState(StateAuthenticating)
	return m.completeLogin(ctx, credential.Pair{Access: access, Refresh: refresh}, "callback")
}

func (m *Manager) completeLogin(ctx context.Context, pair credential.Pair, via string) error {
	m.lifecycle.Lock()
	if err := m.store.Set(ctx, pair.Access, pair.Refresh); err != nil {
		m.lifecycle.Unlock()
		m.loginFailed(ctx, err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	m.epoch.Add(1)
	m.beginSession()
	m.lifecycle.Unlock()

	sid := m.currentSessionID()
	m.metricInc(MetricLoginSuccess)
	m.emitAudit(ctx, AuditEventLogin, true, nil, func() map[string]string {
		return map[string]string{"via": via}
	})
	m.logger.Info("goSession: login succeeded", slog.String("session_id", sid), slog.String("via", via))

	return m.FetchProfile(ctx)
}

// beginSession marks a freshly installed session. Callers hold lifecycle.
func (m *Manager) beginSession() {
	m.mu.Lock()
	m.state = StateAuthenticated
	m.sessionID = ulid.Make().String()
	m.profile = nil
	m.lastLoginErr = ""
	m.mu.Unlock()
	m.ended.Store(false)
}

func (m *Manager) loginFailed(ctx context.Context, err error) {
	msg := "no credential pair"
	if err != nil {
		msg = err.Error()
	}
	m.mu.Lock()
	m.lastLoginErr = msg
	m.mu.Unlock()
	m.settleState()

	m.metricInc(MetricLoginFailure)
	m.emitAudit(ctx, AuditEventLoginFailed, false, err, nil)
	m.logger.Warn("goSession: login failed", slog.String("error", msg))
}

// settleState leaves a transient state for the one the credential implies.
func (m *Manager) settleState() {
	if m.store.IsAuthenticated() {
		m.transition(StateAuthenticated, StateAuthenticating, StateRefreshing)
		return
	}
	m.transition(StateAnonymous, StateAuthenticating, StateRefreshing, StateAuthenticated)
}

// FetchProfile loads the profile through the request pipeline. Without an
// access credential it does nothing. On failure the profile is cleared, the
// credential is kept and an error wrapping ErrProfileFetchFailed is returned.
func (m *Manager) FetchProfile(ctx context.Context) error {
	if !m.ready() {
		return ErrManagerNotReady
	}
	if m.store.Access() == "" {
		return nil
	}
	epoch := m.epoch.Load()

	p, err := flows.RunFetchProfile(ctx, flows.ProfileDeps[UserProfile]{
		Fetch:    m.profiles.FetchProfile,
		Validate: m.validator.Validate,
	})

	// lifecycle is never held across audit emission.
	m.lifecycle.Lock()
	current := m.epoch.Load() == epoch
	if current {
		m.mu.Lock()
		if err != nil {
			m.profile = nil
		} else {
			m.profile = &p
		}
		m.mu.Unlock()
	}
	m.lifecycle.Unlock()

	if err != nil {
		m.metricInc(MetricProfileFailure)
		m.emitAudit(ctx, AuditEventProfileFailed, false, err, nil)
		m.logger.Warn("goSession: profile fetch failed",
			slog.String("session_id", m.currentSessionID()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrProfileFetchFailed, err)
	}
	if !current {
		m.logger.Debug("goSession: stale profile discarded")
		return ErrNotAuthenticated
	}
	m.metricInc(MetricProfileSuccess)
	return nil
}
