// Package guard decides whether an in-app navigation may proceed.
//
// A [Table] maps paths to route descriptors (requires-auth flag and allowed
// roles, inherited from parent routes). A [Guard] evaluates the decision
// table against a synchronous [SessionView]:
//
//  1. auth required and not authenticated: redirect to login, preserving the
//     intended destination in the redirect query parameter;
//  2. role-gated and the role is unknown or insufficient: redirect to the
//     landing route;
//  3. otherwise allow.
//
// A [Router] commits navigations, following guard redirects up to a bound,
// and implements the hard navigation the session Manager performs when a
// session ends.
//
// # What this package must NOT do
//
//   - Trigger profile fetches or any other I/O from Check.
//   - Render views; it only names the destination.
package guard
