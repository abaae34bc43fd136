package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/credential"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissing
	// RefreshFailureRejected is an explicit issuer rejection.
	RefreshFailureRejected
	RefreshFailureIncomplete
	// RefreshFailureExchange covers transport errors and unexpected statuses.
	RefreshFailureExchange
)

func (k RefreshFailureKind) String() string {
	switch k {
	case RefreshFailureNone:
		return "none"
	case RefreshFailureMissing:
		return "missing"
	case RefreshFailureRejected:
		return "rejected"
	case RefreshFailureIncomplete:
		return "incomplete"
	default:
		return "exchange"
	}
}

// RefreshResult carries either the renewed pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Pair    credential.Pair
	Elapsed time.Duration
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Exchange func(ctx context.Context, refresh string) (credential.Pair, error)
	// Timeout bounds the exchange when positive.
	Timeout         time.Duration
	Rejected        error
	IncompleteGrant error
	Now             func() time.Time
}

// RunRefresh exchanges refresh for a new pair. The caller decides what a
// failure does to the session.
func RunRefresh(ctx context.Context, refresh string, deps RefreshDeps) RefreshResult {
	if refresh == "" {
		return RefreshResult{Failure: RefreshFailureMissing}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}

	start := now()
	pair, err := deps.Exchange(ctx, refresh)
	elapsed := now().Sub(start)
	if err != nil {
		kind := RefreshFailureExchange
		switch {
		case deps.Rejected != nil && errors.Is(err, deps.Rejected):
			kind = RefreshFailureRejected
		case deps.IncompleteGrant != nil && errors.Is(err, deps.IncompleteGrant):
			kind = RefreshFailureIncomplete
		}
		return RefreshResult{Failure: kind, Err: err, Elapsed: elapsed}
	}
	if !pair.Authenticated() || pair.Refresh == "" {
		return RefreshResult{Failure: RefreshFailureIncomplete, Err: credential.ErrEmptyCredential, Elapsed: elapsed}
	}
	return RefreshResult{Pair: pair, Elapsed: elapsed}
}
