package credential

import "errors"

// ErrEmptyCredential is returned by Store.Set when either half of the pair is empty.
var ErrEmptyCredential = errors.New("credential: access and refresh must both be non-empty")

const (
	// DefaultAccessKey is the storage key of the access credential.
	DefaultAccessKey = "access_token"
	// DefaultRefreshKey is the storage key of the refresh credential.
	DefaultRefreshKey = "refresh_token"
)

// Pair is an access/refresh credential pair. An empty string means absent.
type Pair struct {
	Access  string
	Refresh string
}

// Authenticated reports whether the pair carries an access credential.
// Server-side validity is not checked.
func (p Pair) Authenticated() bool {
	return p.Access != ""
}

// Empty reports whether both halves are absent.
func (p Pair) Empty() bool {
	return p.Access == "" && p.Refresh == ""
}

// String never prints credential material.
func (p Pair) String() string {
	switch {
	case p.Empty():
		return "credential.Pair(empty)"
	case p.Refresh == "":
		return "credential.Pair(access)"
	default:
		return "credential.Pair(access+refresh)"
	}
}
