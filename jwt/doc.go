// Package jwt reads the claims of access credentials issued as JWTs without
// verifying them.
//
// The client never holds the issuer's signing key. It only needs the expiry
// to renew a credential shortly before the server would reject it, so the
// signature is left to the server. Opaque credentials are reported with
// [ErrNotJWT] and simply skip expiry-driven renewal.
//
// # What this package must NOT do
//
//   - Treat an inspected token as authenticated or authorized.
//   - Import goSession.
package jwt
