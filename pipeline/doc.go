// Package pipeline wraps outbound portal API calls with bearer credentials and
// a single coordinated refresh-and-retry on authorization failure.
//
// [Transport] is an http.RoundTripper. Before each send it attaches the
// current access credential and a correlation id. When the response is 401
// and the originating request has not been retried, it asks the [Session] to
// renew the credential and replays the request exactly once. If renewal
// fails for good ([Session.RenewalFatal]) the session is ended and the
// original 401 is returned unchanged. A caller whose context ends while the
// renewal runs gets its context error, and the session is left to the
// renewal's outcome.
//
// The per-request retry marker is an explicit [Attempt] carried in the request
// context. Callers may install their own Attempt with [WithAttempt] to observe
// what happened to a request.
//
// [Client] is a small JSON helper on top of the transport for the portal's
// CRUD collaborators.
//
// # What this package must NOT do
//
//   - Write credentials. All credential changes go through Session.Renew.
//   - Retry a request more than once.
//   - End the session because one caller gave up waiting.
//   - Import goSession (the session owner imports this package).
package pipeline
