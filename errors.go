package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/pipeline"
)

var (
	// ErrNoRefreshCredential is returned by Refresh when no refresh credential is held.
	ErrNoRefreshCredential = errors.New("no refresh credential")
	// ErrRefreshRejected is returned when the refresh exchange fails. The session is cleared.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrSessionChanged is returned by a refresh whose result was discarded
	// because the session was replaced or logged out while it ran.
	ErrSessionChanged = errors.New("session changed during refresh")
	// ErrProfileFetchFailed is returned when the profile could not be loaded. The credential is kept.
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	// ErrSessionEnded is reported by API calls that failed after the session was ended.
	ErrSessionEnded = pipeline.ErrSessionEnded
	// ErrLoginFailed describes a handshake that did not yield a credential pair.
	ErrLoginFailed = errors.New("login failed")
	// ErrNotAuthenticated is returned by operations that need a credential.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrManagerNotReady is returned by a nil or closed Manager.
	ErrManagerNotReady = errors.New("session manager not initialized")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid session config")
	// ErrInvalidRole is returned for unknown role names.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidProfile is returned when the issuer's profile payload fails validation.
	ErrInvalidProfile = errors.New("invalid user profile")
)
