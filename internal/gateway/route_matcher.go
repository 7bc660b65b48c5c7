package gateway

import (
	"net/http"

	"github.com/jobelix-dev/quotagate/internal/routing"
)

// RouteMatcher resolves the request to a configured route and stashes it in
// the context for the quota middleware and the proxy.
func RouteMatcher(rr *routing.Router, skip SkipFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			rt, ok := rr.Match(r.Method, r.URL.Path)
			if !ok {
				writeError(w, http.StatusNotFound, "no matching route")
				return
			}

			next.ServeHTTP(w, routing.WithRoute(r, rt))
		})
	}
}
