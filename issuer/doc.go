// Package issuer is the HTTP client for the portal's external authentication
// issuer and the loopback receiver used by redirect-mode login.
//
// [Client] speaks the issuer's JSON contract: a direct login exchange, the
// browser authorize URL, the refresh exchange and best-effort logout. Token
// responses are returned as [credential.Pair].
//
// [CallbackServer] is a small fiber application that accepts the browser
// redirect at the end of a redirect-mode login and hands the resulting pair to
// whoever awaits it.
//
// # What this package must NOT do
//
//   - Store credentials. Persistence belongs to credential.Store.
//   - Route requests through the authenticated request pipeline. Refresh and
//     logout use a plain transport so a refresh never recurses into itself.
package issuer
