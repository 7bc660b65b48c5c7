package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jobelix-dev/quotagate/internal/ratelimit"
)

type Middleware func(http.Handler) http.Handler

// Chain applies middlewares around h, first listed runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// setRateHeaders attaches the advisory X-RateLimit-* trio. Set on every
// evaluated response, allowed or not, so well-behaved clients can back off.
func setRateHeaders(w http.ResponseWriter, v ratelimit.Verdict) {
	if v.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", itoa(v.Limit))
	w.Header().Set("X-RateLimit-Remaining", itoa(max(v.Remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", v.ResetAt.UTC().Format(time.RFC3339))
}

// writeError emits the stable rejection shape. No internal detail ever goes
// to the client.
func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

func itoa(i int) string {
	var buf [32]byte
	return string(strconv.AppendInt(buf[:0], int64(i), 10))
}
