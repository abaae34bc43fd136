package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
)

const refreshFlightKey = "refresh"

// Refresh exchanges the refresh credential for a new pair. Concurrent
// callers share one exchange and its outcome. The exchange is detached from
// the caller's cancellation: a caller whose ctx ends stops waiting, but the
// exchange completes and its result is installed.
//
// Without a refresh credential Refresh returns ErrNoRefreshCredential. Any
// exchange failure clears the whole session and returns an error wrapping
// ErrRefreshRejected. A result that lands after the session was replaced or
// logged out is discarded with ErrSessionChanged. Failed refreshes are never
// retried.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.refresh(ctx)
	return err
}

// Renew returns an access credential newer than rejected. When the current
// credential already differs from the one the server rejected, another
// caller refreshed in the meantime and no exchange is made.
func (m *Manager) Renew(ctx context.Context, rejected string) (string, error) {
	if !m.ready() {
		return "", ErrManagerNotReady
	}
	if current := m.store.Access(); current != "" && current != rejected {
		m.metricInc(MetricRefreshSkipped)
		return current, nil
	}
	fresh, err := m.refresh(ctx)
	if errors.Is(err, ErrSessionChanged) {
		// A new session was installed while the exchange ran.
		if current := m.store.Access(); current != "" && current != rejected {
			return current, nil
		}
	}
	return fresh, err
}

// RenewalFatal reports whether a Renew error means the credential is gone
// for good. Only those failures end the session; a caller giving up, a
// closed Manager or a replaced session leave it alone.
func (m *Manager) RenewalFatal(err error) bool {
	return errors.Is(err, ErrNoRefreshCredential) || errors.Is(err, ErrRefreshRejected)
}

// AccessToken returns the credential the pipeline should attach. A JWT
// access credential whose exp falls within the proactive window is renewed
// first.
func (m *Manager) AccessToken(ctx context.Context) (string, bool) {
	if !m.ready() {
		return "", false
	}
	access := m.store.Access()
	if access == "" {
		return "", false
	}
	if m.config.Refresh.DisableProactive || m.store.Refresh() == "" {
		return access, true
	}
	claims, err := jwt.Inspect(access)
	if err != nil || !claims.ExpiresWithin(m.now(), m.config.Refresh.ProactiveWindow) {
		return access, true
	}

	fresh, err := m.refresh(ctx)
	if err != nil {
		m.logger.Debug("goSession: proactive refresh failed", slog.String("error", err.Error()))
		access = m.store.Access()
		return access, access != ""
	}
	return fresh, true
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	if !m.ready() {
		return "", ErrManagerNotReady
	}
	if m.store.Refresh() == "" {
		m.metricInc(MetricNoRefreshCredential)
		return "", ErrNoRefreshCredential
	}

	led := false
	ch := m.refreshGroup.DoChan(refreshFlightKey, func() (any, error) {
		led = true
		return m.runRefresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if !led {
			m.metricInc(MetricRefreshJoined)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// runRefresh is the single in-flight exchange.
func (m *Manager) runRefresh(ctx context.Context) (string, error) {
	epoch := m.epoch.Load()
	refresh := m.store.Refresh()
	if refresh == "" {
		m.metricInc(MetricNoRefreshCredential)
		return "", ErrNoRefreshCredential
	}

	m.transition(StateRefreshing, StateAuthenticated)
	m.refreshing.Store(true)
	defer m.refreshing.Store(false)

	res := flows.RunRefresh(ctx, refresh, m.flows.Refresh)
	m.metricObserve(MetricRefreshLatency, res.Elapsed)

	m.lifecycle.Lock()
	if m.epoch.Load() != epoch {
		m.lifecycle.Unlock()
		m.settleState()
		m.logger.Debug("goSession: refresh result discarded, session changed")
		return "", ErrSessionChanged
	}

	if res.Failure != flows.RefreshFailureNone {
		m.epoch.Add(1)
		sid := m.currentSessionID()
		m.clearLocked(ctx)
		m.lifecycle.Unlock()

		m.metricInc(MetricRefreshFailure)
		m.emitAuditFor(ctx, sid, AuditEventRefreshFailed, false, res.Err, func() map[string]string {
			return map[string]string{"reason": res.Failure.String()}
		})
		m.logger.Warn("goSession: refresh rejected",
			slog.String("session_id", sid),
			slog.String("reason", res.Failure.String()),
		)
		if res.Failure == flows.RefreshFailureMissing {
			return "", ErrNoRefreshCredential
		}
		return "", fmt.Errorf("%w: %w", ErrRefreshRejected, res.Err)
	}

	if err := m.store.Set(ctx, res.Pair.Access, res.Pair.Refresh); err != nil {
		m.lifecycle.Unlock()
		m.settleState()
		return "", fmt.Errorf("%w: %w", ErrRefreshRejected, err)
	}
	m.lifecycle.Unlock()
	m.transition(StateAuthenticated, StateRefreshing)

	m.metricInc(MetricRefreshSuccess)
	m.emitAudit(ctx, AuditEventRefresh, true, nil, nil)
	m.logger.Debug("goSession: credential refreshed", slog.String("session_id", m.currentSessionID()))
	return res.Pair.Access, nil
}

// accessExpiry returns the exp of a JWT access credential, or the zero time.
func accessExpiry(access string) time.Time {
	if access == "" {
		return time.Time{}
	}
	claims, err := jwt.Inspect(access)
	if err != nil || !claims.HasExpiry() {
		return time.Time{}
	}
	return claims.ExpiresAt
}
