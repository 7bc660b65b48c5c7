package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/jobelix-dev/quotagate/internal/identity"
	"github.com/jobelix-dev/quotagate/internal/ratelimit"
)

const floodMessage = "Too many requests. Please try again later."

// SkipFunc decides whether a path bypasses the global limiter (assets, ops
// endpoints).
type SkipFunc func(path string) bool

// SkipPaths builds a SkipFunc from exact paths and prefixes.
func SkipPaths(exact []string, prefixes []string) SkipFunc {
	set := make(map[string]struct{}, len(exact))
	for _, p := range exact {
		set[p] = struct{}{}
	}
	return func(path string) bool {
		if _, ok := set[path]; ok {
			return true
		}
		for _, pre := range prefixes {
			if pre != "" && strings.HasPrefix(path, pre) {
				return true
			}
		}
		return false
	}
}

// GlobalRateLimit applies one coarse flood-control window per client IP to
// every request that is not skipped. It sits in front of route dispatch.
func GlobalRateLimit(
	lim ratelimit.Limiter,
	policy ratelimit.Policy,
	skip SkipFunc,
	onLimited func(),
	onError func(),
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			v, err := lim.Allow(r.Context(), identity.ClientIP(r), policy, time.Now())
			if err != nil {
				if onError != nil {
					onError()
				}
				writeError(w, http.StatusInternalServerError, "internal rate limiter error")
				return
			}

			setRateHeaders(w, v)

			if !v.Allowed {
				if onLimited != nil {
					onLimited()
				}
				writeError(w, http.StatusTooManyRequests, floodMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
