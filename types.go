package goSession

import (
	"fmt"
	"strings"
	"time"
)

// Role is the portal role of the signed-in user. Roles form a hierarchy:
// admin satisfies everything reviewer satisfies, which satisfies everything
// applicant satisfies.
type Role string

const (
	// RoleApplicant submits funding applications.
	RoleApplicant Role = "applicant"
	// RoleReviewer scores applications.
	RoleReviewer Role = "reviewer"
	// RoleAdmin manages users, configuration and reports.
	RoleAdmin Role = "admin"
)

// Rank orders roles; unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleApplicant:
		return 1
	case RoleReviewer:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// Satisfies reports whether a user holding r passes a check for required.
func (r Role) Satisfies(required Role) bool {
	return required.Valid() && r.Rank() >= required.Rank()
}

// SatisfiesAny reports whether r satisfies at least one of allowed.
func (r Role) SatisfiesAny(allowed []Role) bool {
	for _, a := range allowed {
		if r.Satisfies(a) {
			return true
		}
	}
	return false
}

// ParseRole parses a role name, ignoring case and surrounding space.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// UserProfile is the signed-in user as reported by the issuer. It is never
// persisted.
type UserProfile struct {
	ID             string     `json:"id" validate:"required"`
	Email          string     `json:"email" validate:"required,email"`
	DisplayName    string     `json:"display_name" validate:"required"`
	FirstName      *string    `json:"first_name,omitempty"`
	LastName       *string    `json:"last_name,omitempty"`
	Role           Role       `json:"role" validate:"required,oneof=applicant reviewer admin"`
	OrganizationID *string    `json:"organization_id"`
	IsActive       bool       `json:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

func (p UserProfile) clone() UserProfile {
	out := p
	out.FirstName = cloneString(p.FirstName)
	out.LastName = cloneString(p.LastName)
	out.OrganizationID = cloneString(p.OrganizationID)
	if p.LastLogin != nil {
		t := *p.LastLogin
		out.LastLogin = &t
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// State is the Manager's position in the session lifecycle.
type State int32

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// LoginMode selects how Login obtains a credential pair.
type LoginMode string

const (
	// LoginModeDirect exchanges credentials with the issuer's direct login endpoint.
	LoginModeDirect LoginMode = "direct"
	// LoginModeRedirect sends the user through the issuer's browser handshake.
	LoginModeRedirect LoginMode = "redirect"
)

// NavigationOutcome is the result of a navigation guard decision.
type NavigationOutcome int

const (
	NavigationAllowed NavigationOutcome = iota
	NavigationLoginRequired
	NavigationRoleDenied
)

func (o NavigationOutcome) String() string {
	switch o {
	case NavigationAllowed:
		return "allowed"
	case NavigationLoginRequired:
		return "login_required"
	case NavigationRoleDenied:
		return "role_denied"
	default:
		return fmt.Sprintf("NavigationOutcome(%d)", int(o))
	}
}

// SessionInfo is a read-only snapshot of the session.
type SessionInfo struct {
	State             State
	Authenticated     bool
	SessionID         string
	Profile           *UserProfile
	AccessExpiresAt   time.Time
	RefreshInProgress bool
	StorageDegraded   bool
	LastLoginError    string
}
