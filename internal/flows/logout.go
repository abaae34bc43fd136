package flows

import (
	"context"
	"time"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Revoke  func(ctx context.Context, refresh string) error
	Timeout time.Duration
}

// RunLogout tells the issuer to revoke refresh. The returned error is
// informational; logout never fails from the caller's point of view.
func RunLogout(ctx context.Context, refresh string, deps LogoutDeps) error {
	if refresh == "" || deps.Revoke == nil {
		return nil
	}
	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}
	return deps.Revoke(ctx, refresh)
}
