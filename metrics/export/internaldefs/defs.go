package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one goSession counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one goSession latency histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Handshakes that installed a credential pair."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Handshakes that ended without a credential pair."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Refresh exchanges that installed a new pair."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Refresh exchanges that failed and cleared the session."},
	{ID: goSession.MetricRefreshJoined, Name: "gosession_refresh_joined_total", Help: "Callers that waited on an in-flight refresh."},
	{ID: goSession.MetricRefreshSkipped, Name: "gosession_refresh_skipped_total", Help: "Renewals answered with an already rotated credential."},
	{ID: goSession.MetricNoRefreshCredential, Name: "gosession_refresh_missing_credential_total", Help: "Refresh requests made without a refresh credential."},
	{ID: goSession.MetricRetryAttempted, Name: "gosession_request_retry_total", Help: "Requests replayed after a 401."},
	{ID: goSession.MetricRetrySucceeded, Name: "gosession_request_retry_success_total", Help: "Replayed requests that were accepted."},
	{ID: goSession.MetricRetryExhausted, Name: "gosession_request_retry_exhausted_total", Help: "Replayed requests that still failed."},
	{ID: goSession.MetricSessionEnded, Name: "gosession_session_ended_total", Help: "Sessions ended after a failed renewal."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logouts that cleared a session."},
	{ID: goSession.MetricLogoutNetworkFailure, Name: "gosession_logout_network_failure_total", Help: "Logouts whose issuer revoke call failed."},
	{ID: goSession.MetricProfileSuccess, Name: "gosession_profile_success_total", Help: "Profile loads that succeeded."},
	{ID: goSession.MetricProfileFailure, Name: "gosession_profile_failure_total", Help: "Profile loads that failed."},
	{ID: goSession.MetricNavigationAllowed, Name: "gosession_navigation_allowed_total", Help: "Guarded navigations that were allowed."},
	{ID: goSession.MetricNavigationLoginRedirect, Name: "gosession_navigation_login_redirect_total", Help: "Guarded navigations redirected to login."},
	{ID: goSession.MetricNavigationRoleDenied, Name: "gosession_navigation_role_denied_total", Help: "Guarded navigations denied for lack of role."},
	{ID: goSession.MetricStorageDegraded, Name: "gosession_storage_degraded_total", Help: "Credential storages that fell back to memory."},
	{ID: goSession.MetricAuditDropped, Name: AuditDroppedName, Help: AuditDroppedHelp},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Refresh exchange latency."},
	{ID: goSession.MetricRequestLatency, Name: "gosession_request_latency_seconds", Help: "Request pipeline latency including any replay."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "gosession_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events that never reached the sink."

// UpperBounds are the finite bucket bounds in seconds, matching
// goSession.HistogramBounds.
var UpperBounds = func() []float64 {
	out := make([]float64, len(goSession.HistogramBounds))
	for i, ms := range goSession.HistogramBounds {
		out[i] = ms / 1000
	}
	return out
}()

// HistogramBoundSuffix names each bucket, the last one unbounded.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
