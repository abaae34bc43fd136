package flows

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/credential"
)

var (
	errRejected   = errors.New("rejected")
	errIncomplete = errors.New("incomplete")
)

func TestRunRefreshClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		refresh string
		pair    credential.Pair
		err     error
		want    RefreshFailureKind
	}{
		{name: "missing", refresh: "", want: RefreshFailureMissing},
		{name: "rejected", refresh: "r1", err: fmt.Errorf("issuer: %w", errRejected), want: RefreshFailureRejected},
		{name: "incomplete error", refresh: "r1", err: errIncomplete, want: RefreshFailureIncomplete},
		{name: "half pair", refresh: "r1", pair: credential.Pair{Access: "a2"}, want: RefreshFailureIncomplete},
		{name: "transport", refresh: "r1", err: errors.New("connection reset"), want: RefreshFailureExchange},
		{name: "ok", refresh: "r1", pair: credential.Pair{Access: "a2", Refresh: "r2"}, want: RefreshFailureNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			res := RunRefresh(context.Background(), tt.refresh, RefreshDeps{
				Exchange: func(context.Context, string) (credential.Pair, error) {
					calls++
					return tt.pair, tt.err
				},
				Rejected:        errRejected,
				IncompleteGrant: errIncomplete,
			})
			if res.Failure != tt.want {
				t.Fatalf("expected %s, got %s (%v)", tt.want, res.Failure, res.Err)
			}
			if tt.refresh == "" && calls != 0 {
				t.Fatalf("missing refresh credential must not reach the issuer")
			}
			if tt.want == RefreshFailureNone && res.Pair != tt.pair {
				t.Fatalf("unexpected pair %v", res.Pair)
			}
		})
	}
}

func TestRunRefreshAppliesTimeoutAndMeasures(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	ticks := 0
	res := RunRefresh(context.Background(), "r1", RefreshDeps{
		Exchange: func(ctx context.Context, _ string) (credential.Pair, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Fatal("expected exchange deadline")
			}
			return credential.Pair{Access: "a2", Refresh: "r2"}, nil
		},
		Timeout: time.Second,
		Now: func() time.Time {
			ticks++
			return base.Add(time.Duration(ticks) * 40 * time.Millisecond)
		},
	})
	if res.Failure != RefreshFailureNone {
		t.Fatalf("unexpected failure %v", res.Err)
	}
	if res.Elapsed != 40*time.Millisecond {
		t.Fatalf("expected 40ms elapsed, got %s", res.Elapsed)
	}
}

func TestRunLoginDirect(t *testing.T) {
	res := RunLogin(context.Background(), LoginDeps{
		Mode: LoginDirect,
		DirectLogin: func(context.Context) (credential.Pair, error) {
			return credential.Pair{Access: "a1", Refresh: "r1"}, nil
		},
	})
	if res.Failure != LoginFailureNone || res.Pair.Access != "a1" {
		t.Fatalf("unexpected result %+v", res)
	}

	res = RunLogin(context.Background(), LoginDeps{
		Mode: LoginDirect,
		DirectLogin: func(context.Context) (credential.Pair, error) {
			return credential.Pair{}, fmt.Errorf("grant: %w", errIncomplete)
		},
		IncompleteGrant: errIncomplete,
	})
	if res.Failure != LoginFailureNoPair {
		t.Fatalf("expected no-pair failure, got %+v", res)
	}

	res = RunLogin(context.Background(), LoginDeps{Mode: LoginDirect})
	if res.Failure != LoginFailureHandshake {
		t.Fatalf("expected handshake failure without exchange, got %+v", res)
	}
}

func TestRunLoginRedirect(t *testing.T) {
	var navigated string
	deps := LoginDeps{
		Mode:         LoginRedirect,
		AuthorizeURL: func() string { return "https://issuer.example.org/login" },
		Navigate: func(_ context.Context, target string) error {
			navigated = target
			return nil
		},
	}

	res := RunLogin(context.Background(), deps)
	if !res.Deferred || res.Failure != LoginFailureNone {
		t.Fatalf("expected deferred login, got %+v", res)
	}
	if navigated != "https://issuer.example.org/login" {
		t.Fatalf("unexpected navigation %q", navigated)
	}

	deps.CallbackTimeout = time.Second
	deps.AwaitCallback = func(ctx context.Context) (credential.Pair, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("expected callback deadline")
		}
		return credential.Pair{Access: "a1", Refresh: "r1"}, nil
	}
	res = RunLogin(context.Background(), deps)
	if res.Deferred || res.Pair.Refresh != "r1" {
		t.Fatalf("expected completed login, got %+v", res)
	}

	deps.AwaitCallback = func(context.Context) (credential.Pair, error) {
		return credential.Pair{}, context.DeadlineExceeded
	}
	res = RunLogin(context.Background(), deps)
	if res.Failure != LoginFailureCallback {
		t.Fatalf("expected callback failure, got %+v", res)
	}

	deps.Navigate = func(context.Context, string) error { return errors.New("no browser") }
	res = RunLogin(context.Background(), deps)
	if res.Failure != LoginFailureNavigate {
		t.Fatalf("expected navigate failure, got %+v", res)
	}
}

func TestRunLogout(t *testing.T) {
	if err := RunLogout(context.Background(), "", LogoutDeps{
		Revoke: func(context.Context, string) error {
			t.Fatal("revoke called without refresh credential")
			return nil
		},
	}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	var got string
	err := RunLogout(context.Background(), "r1", LogoutDeps{
		Revoke: func(_ context.Context, refresh string) error {
			got = refresh
			return errors.New("offline")
		},
		Timeout: time.Second,
	})
	if err == nil || got != "r1" {
		t.Fatalf("expected revoke of r1 with error, got %q %v", got, err)
	}
}

func TestRunFetchProfileValidates(t *testing.T) {
	type profile struct{ ID string }
	deps := ProfileDeps[profile]{
		Fetch: func(context.Context) (profile, error) { return profile{}, nil },
		Validate: func(p profile) error {
			if p.ID == "" {
				return errors.New("id required")
			}
			return nil
		},
	}
	if _, err := RunFetchProfile(context.Background(), deps); err == nil {
		t.Fatal("expected validation error")
	}

	deps.Fetch = func(context.Context) (profile, error) { return profile{ID: "u1"}, nil }
	p, err := RunFetchProfile(context.Background(), deps)
	if err != nil || p.ID != "u1" {
		t.Fatalf("unexpected result %+v %v", p, err)
	}
}
