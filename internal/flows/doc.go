// Package flows contains the orchestrators behind every session Manager
// operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunFetchProfile)
// accepts a typed dependency struct and returns a result describing what
// happened. The Manager maps results onto state, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the issuer, the navigator, the callback
// receiver and the profile endpoint. They do NOT own any of these resources
// and never touch the credential store: installing or clearing a credential
// pair is the Manager's job.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Log or return credential values inside errors.
package flows
