package goSession

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/issuer"
	"github.com/MrEthical07/goSession/pipeline"
)

// AuditErrorCode is the coarse failure class recorded in audit events.
type AuditErrorCode string

const (
	auditErrRejected        AuditErrorCode = "rejected"
	auditErrIncompleteGrant AuditErrorCode = "incomplete_grant"
	auditErrNoRefresh       AuditErrorCode = "no_refresh_credential"
	auditErrSessionEnded    AuditErrorCode = "session_ended"
	auditErrInvalidProfile  AuditErrorCode = "invalid_profile"
	auditErrUnauthorized    AuditErrorCode = "unauthorized"
	auditErrTimeout         AuditErrorCode = "timeout"
	auditErrUpstream        AuditErrorCode = "upstream_error"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

func (m *Manager) metricObserve(id MetricID, d time.Duration) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Observe(id, d)
}

func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}
	m.emitAuditFor(ctx, m.currentSessionID(), eventType, success, err, metadataBuilder)
}

// emitAuditFor records an event for sessionID, which may already be gone.
// The audit queue stamps the remaining session fields.
func (m *Manager) emitAuditFor(
	ctx context.Context,
	sessionID string,
	eventType string,
	success bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		SessionID: sessionID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	m.audit.Enqueue(ctx, event)
}

// stampAudit fills user fields from the loaded profile.
func (m *Manager) stampAudit(ev *AuditEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ev.UserID == "" && m.profile != nil {
		ev.UserID = m.profile.ID
		ev.Role = string(m.profile.Role)
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var apiErr *pipeline.APIError
	var statusErr *issuer.StatusError
	switch {
	case errors.Is(err, issuer.ErrRejected),
		errors.Is(err, ErrRefreshRejected):
		return auditErrRejected
	case errors.Is(err, issuer.ErrIncompleteGrant),
		errors.Is(err, credential.ErrEmptyCredential):
		return auditErrIncompleteGrant
	case errors.Is(err, ErrNoRefreshCredential):
		return auditErrNoRefresh
	case errors.Is(err, ErrSessionEnded):
		return auditErrSessionEnded
	case errors.Is(err, ErrInvalidProfile):
		return auditErrInvalidProfile
	case errors.Is(err, context.DeadlineExceeded):
		return auditErrTimeout
	case errors.As(err, &apiErr):
		if apiErr.Unauthorized() {
			return auditErrUnauthorized
		}
		return auditErrUpstream
	case errors.As(err, &statusErr):
		return auditErrUpstream
	default:
		return auditErrInternal
	}
}

// RecordNavigation counts a guard decision. Role denials are audited.
func (m *Manager) RecordNavigation(ctx context.Context, to string, outcome NavigationOutcome) {
	if m == nil {
		return
	}
	switch outcome {
	case NavigationAllowed:
		m.metricInc(MetricNavigationAllowed)
	case NavigationLoginRequired:
		m.metricInc(MetricNavigationLoginRedirect)
	case NavigationRoleDenied:
		m.metricInc(MetricNavigationRoleDenied)
		m.emitAudit(ctx, AuditEventNavigationDenied, false, nil, func() map[string]string {
			return map[string]string{"path": to}
		})
		m.logger.Debug("goSession: navigation denied", slog.String("path", to))
	}
}

// RequestDone records the outcome of one pipeline request.
func (m *Manager) RequestDone(ctx context.Context, attempt pipeline.Attempt, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.metricObserve(MetricRequestLatency, elapsed)
	if !attempt.Retried {
		return
	}
	m.metricInc(MetricRetryAttempted)
	if attempt.Refreshed && status != 0 && status != http.StatusUnauthorized {
		m.metricInc(MetricRetrySucceeded)
		return
	}
	m.metricInc(MetricRetryExhausted)
	m.logger.Debug("goSession: request failed after retry",
		slog.String("correlation_id", attempt.CorrelationID),
		slog.Int("status", status),
		slog.Bool("session_ended", attempt.SessionEnded),
	)
}
