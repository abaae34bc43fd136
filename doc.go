// Package goSession is the session and authorization core of the grant
// portal client.
//
// It owns the signed-in user's credential pair (a short-lived access
// credential and a longer-lived refresh credential), keeps it alive across
// restarts, renews it with a single in-flight exchange, and ends the session
// when renewal is no longer possible.
//
// # Architecture boundaries
//
// goSession is the public surface: [Manager], [Builder], [Config] and the
// value types ([UserProfile], [Role], [SessionInfo], [MetricsSnapshot]).
// Sub-packages carry the mechanics:
//
//   - credential: the credential store and its storage backends
//   - pipeline: the RoundTripper that attaches the access credential and
//     replays a request once after a 401
//   - issuer: the HTTP client for the authentication issuer and the
//     redirect callback receiver
//   - guard: the role-aware navigation guard and in-app router
//   - metrics/export: Prometheus and OpenTelemetry exporters
//
// # Concurrency
//
// Manager methods are safe for concurrent use after [Builder.Build].
// Concurrent refresh requests share one exchange. A refresh that completes
// after the session was replaced or logged out is discarded.
//
// # What this package must NOT do
//
//   - Log or audit credential values.
//   - Perform I/O while building; call [Manager.Restore] to load a
//     persisted session.
//   - Import a sub-package that imports goSession (guard and the exporters
//     sit on top).
package goSession
