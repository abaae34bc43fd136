// Package credential holds the access/refresh credential pair of a client
// session and mirrors it into a persistent key-value medium.
//
// [Store] is the only in-memory owner of the pair. Writers replace both halves
// in one step, so readers never see a half-updated pair. Persistent storage is
// pluggable through [Storage]: memory, a JSON file, Redis and SQL backends ship
// with the package.
//
// # Degradation
//
// A persistence failure never fails a write. The first storage error switches
// the Store to in-memory-only operation for the rest of the process lifetime
// and reports it once through the configured logger and degrade hook.
//
// # What this package must NOT do
//
//   - Import goSession, pipeline or guard (no upward imports).
//   - Perform network I/O other than through a [Storage] implementation.
//   - Log credential values.
package credential
