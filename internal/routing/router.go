package routing

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jobelix-dev/quotagate/internal/ratelimit"
)

// Route is one proxied endpoint group: a path prefix plus methods, the
// upstream it forwards to, and an optional per-endpoint quota.
type Route struct {
	ID      string
	Methods map[string]struct{}
	Prefix  string
	UpURL   *url.URL
	Timeout time.Duration
	Quota   *ratelimit.QuotaPolicy
}

type Router struct {
	routes []*Route
}

func New() *Router {
	return &Router{}
}

func (r *Router) Add(rt *Route) {
	r.routes = append(r.routes, rt)
}

func (r *Router) Routes() []*Route {
	return r.routes
}

// Match returns the first route whose methods and prefix cover the request.
func (r *Router) Match(method, path string) (*Route, bool) {
	m := strings.ToUpper(method)
	for _, rt := range r.routes {
		if len(rt.Methods) > 0 {
			if _, ok := rt.Methods[m]; !ok {
				continue
			}
		}
		prefix := strings.TrimSuffix(strings.TrimSpace(rt.Prefix), "/")
		if prefix == "" {
			// root prefix: catch-all
			return rt, true
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return rt, true
		}
	}
	return nil, false
}

// --- context helpers ---

type ctxKey int

const keyRoute ctxKey = 0

func WithRoute(r *http.Request, rt *Route) *http.Request {
	ctx := context.WithValue(r.Context(), keyRoute, rt)
	return r.WithContext(ctx)
}

func RouteFrom(r *http.Request) (*Route, bool) {
	v := r.Context().Value(keyRoute)
	if v == nil {
		return nil, false
	}
	rt, ok := v.(*Route)
	return rt, ok
}
