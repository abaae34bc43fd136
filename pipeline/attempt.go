package pipeline

import "context"

// Attempt records the life of one originating request across its sends.
type Attempt struct {
	// CorrelationID is sent as X-Correlation-ID on every send of the request.
	CorrelationID string
	// Sends counts round trips made for the request.
	Sends int
	// Retried is set before the single replay is issued.
	Retried bool
	// Refreshed is set when renewal produced a new credential.
	Refreshed bool
	// SessionEnded is set when renewal failed and the session was ended.
	SessionEnded bool
}

type attemptContextKey struct{}

// WithAttempt attaches a to ctx. The transport updates it in place.
func WithAttempt(ctx context.Context, a *Attempt) context.Context {
	return context.WithValue(ctx, attemptContextKey{}, a)
}

// AttemptFromContext returns the Attempt attached to ctx.
func AttemptFromContext(ctx context.Context) (*Attempt, bool) {
	if ctx == nil {
		return nil, false
	}
	a, ok := ctx.Value(attemptContextKey{}).(*Attempt)
	return a, ok && a != nil
}
