package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned for credentials that are not three-part JWTs.
var ErrNotJWT = errors.New("jwt: credential is not a jwt")

// AccessClaims is the subset of access-credential claims the client reads.
type AccessClaims struct {
	Subject   string
	Role      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	Role string `json:"role,omitempty"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes token without verifying its signature.
func Inspect(token string) (AccessClaims, error) {
	if strings.Count(token, ".") != 2 {
		return AccessClaims{}, ErrNotJWT
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return AccessClaims{}, errors.Join(ErrNotJWT, err)
	}

	out := AccessClaims{
		Subject:   claims.Subject,
		Role:      claims.Role,
		SessionID: claims.SID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// HasExpiry reports whether the credential carries an exp claim.
func (c AccessClaims) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// ExpiresWithin reports whether the credential expires before now+window.
// Credentials without exp never do.
func (c AccessClaims) ExpiresWithin(now time.Time, window time.Duration) bool {
	if !c.HasExpiry() {
		return false
	}
	return !now.Add(window).Before(c.ExpiresAt)
}
