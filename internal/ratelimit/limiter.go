package ratelimit

import (
	"context"
	"time"
)

// Policy is a single fixed-window limit: at most Max requests per Window.
type Policy struct {
	Window time.Duration
	Max    int
}

// Verdict is the outcome of one check. Ephemeral, never stored.
type Verdict struct {
	Allowed   bool
	Limit     int       // configured ceiling for the binding window
	Remaining int       // requests left in the current window (min 0)
	ResetAt   time.Time // when the binding window resets
}

// Limiter is a check-and-increment counter store. Every call counts against
// the window, including calls that come back rejected.
type Limiter interface {
	Allow(ctx context.Context, key string, p Policy, now time.Time) (Verdict, error)
	Close() error
}
