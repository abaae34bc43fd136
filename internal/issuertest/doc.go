// Package issuertest runs an in-process fake of the portal API and its
// authentication issuer for tests.
//
// The fake issues HS256 JWT access credentials and single-use refresh
// credentials, counts every exchange and lets tests expire, reject or delay
// them.
package issuertest
