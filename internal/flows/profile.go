package flows

import (
	"context"
	"fmt"
)

// ProfileDeps captures profile flow dependencies for a profile type P.
type ProfileDeps[P any] struct {
	Fetch    func(ctx context.Context) (P, error)
	Validate func(P) error
}

// RunFetchProfile loads and validates the current user's profile.
func RunFetchProfile[P any](ctx context.Context, deps ProfileDeps[P]) (P, error) {
	var zero P
	p, err := deps.Fetch(ctx)
	if err != nil {
		return zero, err
	}
	if deps.Validate != nil {
		if err := deps.Validate(p); err != nil {
			return zero, fmt.Errorf("validate profile: %w", err)
		}
	}
	return p, nil
}
