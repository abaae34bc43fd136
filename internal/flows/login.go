package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/credential"
)

// LoginMode mirrors the root login mode without importing it.
type LoginMode int

const (
	LoginDirect LoginMode = iota
	LoginRedirect
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	// LoginFailureNoPair means the handshake finished without a usable pair.
	LoginFailureNoPair
	LoginFailureHandshake
	LoginFailureNavigate
	LoginFailureCallback
)

// LoginResult carries either the obtained pair or failure metadata. Deferred
// is set when redirect mode handed the user to the issuer and no callback
// receiver is waiting; the pair arrives later through another path.
type LoginResult struct {
	Failure  LoginFailureKind
	Err      error
	Pair     credential.Pair
	Deferred bool
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Mode LoginMode
	// DirectLogin performs the direct exchange.
	DirectLogin func(ctx context.Context) (credential.Pair, error)
	// AuthorizeURL returns the issuer's browser entry point.
	AuthorizeURL func() string
	// Navigate performs the external hard navigation.
	Navigate func(ctx context.Context, target string) error
	// AwaitCallback blocks until the redirect callback yields a pair. Nil
	// means no receiver is configured.
	AwaitCallback   func(ctx context.Context) (credential.Pair, error)
	CallbackTimeout time.Duration
	// IncompleteGrant classifies issuer errors that mean "no pair".
	IncompleteGrant error
}

// RunLogin performs the configured handshake without root package dependencies.
func RunLogin(ctx context.Context, deps LoginDeps) LoginResult {
	switch deps.Mode {
	case LoginRedirect:
		return runRedirectLogin(ctx, deps)
	default:
		return runDirectLogin(ctx, deps)
	}
}

func runDirectLogin(ctx context.Context, deps LoginDeps) LoginResult {
	if deps.DirectLogin == nil {
		return LoginResult{Failure: LoginFailureHandshake, Err: errors.New("direct login not supported by issuer")}
	}
	pair, err := deps.DirectLogin(ctx)
	return grant(pair, err, LoginFailureHandshake, deps.IncompleteGrant)
}

func runRedirectLogin(ctx context.Context, deps LoginDeps) LoginResult {
	if deps.AuthorizeURL == nil || deps.Navigate == nil {
		return LoginResult{Failure: LoginFailureNavigate, Err: errors.New("redirect login requires an authorize url and a navigator")}
	}
	if err := deps.Navigate(ctx, deps.AuthorizeURL()); err != nil {
		return LoginResult{Failure: LoginFailureNavigate, Err: fmt.Errorf("navigate to issuer: %w", err)}
	}
	if deps.AwaitCallback == nil {
		return LoginResult{Deferred: true}
	}

	waitCtx := ctx
	if deps.CallbackTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, deps.CallbackTimeout)
		defer cancel()
	}
	pair, err := deps.AwaitCallback(waitCtx)
	return grant(pair, err, LoginFailureCallback, deps.IncompleteGrant)
}

func grant(pair credential.Pair, err error, kind LoginFailureKind, incomplete error) LoginResult {
	if err != nil {
		if incomplete != nil && errors.Is(err, incomplete) {
			return LoginResult{Failure: LoginFailureNoPair, Err: err}
		}
		return LoginResult{Failure: kind, Err: err}
	}
	if !pair.Authenticated() || pair.Refresh == "" {
		return LoginResult{Failure: LoginFailureNoPair, Err: credential.ErrEmptyCredential}
	}
	return LoginResult{Pair: pair}
}
