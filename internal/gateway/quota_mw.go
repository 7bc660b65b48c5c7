package gateway

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/jobelix-dev/quotagate/internal/audit"
	"github.com/jobelix-dev/quotagate/internal/auth"
	"github.com/jobelix-dev/quotagate/internal/identity"
	"github.com/jobelix-dev/quotagate/internal/ratelimit"
	"github.com/jobelix-dev/quotagate/internal/routing"
)

const quotaMessage = "Quota exceeded. Please try again later."

// EndpointQuota enforces the matched route's dual-window quota, keyed by a
// hashed pseudo-identity: the API key ID when the caller is authenticated,
// the client IP otherwise. Routes without a quota pass straight through.
//
// Identity derivation failure fails closed: the request is denied rather
// than admitted unthrottled.
func EndpointQuota(
	quota *ratelimit.Quota,
	hasher *identity.Hasher,
	recorder *audit.Recorder,
	onLimited func(endpoint string),
	onError func(endpoint string),
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt, ok := routing.RouteFrom(r)
			if !ok || rt.Quota == nil {
				next.ServeHTTP(w, r)
				return
			}
			p := *rt.Quota

			subject, authed := auth.KeyIDFrom(r.Context())
			if !authed {
				subject = identity.ClientIP(r)
			}
			id, err := hasher.Pseudonym(subject)
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("endpoint", p.Endpoint).
					Msg("identity derivation failed, denying")
				if onError != nil {
					onError(p.Endpoint)
				}
				writeError(w, http.StatusTooManyRequests, quotaMessage)
				return
			}

			v, err := quota.Allow(r.Context(), id, p, time.Now())
			if err != nil {
				if onError != nil {
					onError(p.Endpoint)
				}
				writeError(w, http.StatusInternalServerError, "internal rate limiter error")
				return
			}

			if recorder != nil {
				recorder.Record(audit.Entry{
					Endpoint:  p.Endpoint,
					Identity:  id,
					Allowed:   v.Allowed,
					Remaining: v.Remaining,
				})
			}

			setRateHeaders(w, v)

			if !v.Allowed {
				if onLimited != nil {
					onLimited(p.Endpoint)
				}
				msg := p.Message
				if msg == "" {
					msg = quotaMessage
				}
				writeError(w, http.StatusTooManyRequests, msg)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
