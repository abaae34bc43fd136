package goSession

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Logout revokes the refresh credential at the issuer (best effort) and then
// clears the session. It never fails. On an already logged-out session it
// performs no I/O and changes nothing.
func (m *Manager) Logout(ctx context.Context) {
	if m == nil {
		return
	}
	m.logout(ctx, AuditEventLogout)
}

// EndSession logs out and sends the user to the login route. However many
// callers end the same session, the hard navigation happens once.
func (m *Manager) EndSession(ctx context.Context) {
	if m == nil {
		return
	}
	sid := m.currentSessionID()
	m.logout(ctx, AuditEventSessionEnded)

	if !m.ended.CompareAndSwap(false, true) {
		return
	}
	m.metricInc(MetricSessionEnded)
	m.logger.Info("goSession: session ended", slog.String("session_id", sid))
	if m.navigator == nil {
		return
	}
	if err := m.navigator.HardNavigate(ctx, m.config.Navigation.LoginPath); err != nil {
		m.logger.Warn("goSession: navigation to login failed", slog.String("error", err.Error()))
	}
}

func (m *Manager) logout(ctx context.Context, event string) {
	m.logoutMu.Lock()
	defer m.logoutMu.Unlock()

	pair := m.store.Pair()
	m.mu.RLock()
	hasProfile := m.profile != nil
	sid := m.sessionID
	m.mu.RUnlock()
	if pair.Empty() && !hasProfile {
		return
	}

	if err := flows.RunLogout(ctx, pair.Refresh, m.flows.Logout); err != nil {
		m.metricInc(MetricLogoutNetworkFailure)
		m.logger.Debug("goSession: logout request failed", slog.String("error", err.Error()))
	}

	// Audit before clearing so the event still names the session and user.
	m.emitAudit(ctx, event, true, nil, nil)

	m.lifecycle.Lock()
	m.epoch.Add(1)
	m.clearLocked(ctx)
	m.lifecycle.Unlock()

	m.metricInc(MetricLogout)
	m.logger.Info("goSession: logged out", slog.String("session_id", sid))
}

// clearLocked drops credential and profile. Callers hold lifecycle.
func (m *Manager) clearLocked(ctx context.Context) {
	m.store.Clear(ctx)
	m.mu.Lock()
	m.state = StateAnonymous
	m.profile = nil
	m.sessionID = ""
	m.mu.Unlock()
}
