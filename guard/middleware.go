package guard

import "net/http"

// Middleware applies g to server-rendered routes: denied navigations are
// answered with 302 to the guard's redirect.
func Middleware(g *Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(r.Context(), r.URL.RequestURI())
			if !d.Allowed() {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
