package ratelimit

import (
	"context"
	"time"
)

// QuotaPolicy is a per-endpoint usage ceiling with up to two simultaneous
// windows. A zero limit disables that window.
type QuotaPolicy struct {
	Endpoint     string
	HourlyLimit  int
	HourlyWindow time.Duration // defaults to one hour
	DailyLimit   int
	DailyWindow  time.Duration // defaults to 24 hours
	Message      string        // user-facing rejection text
}

// Quota enforces dual-window endpoint quotas on top of a Limiter. Each
// identity/endpoint pair gets independent hourly and daily counters.
type Quota struct {
	store Limiter
}

func NewQuota(store Limiter) *Quota {
	return &Quota{store: store}
}

// Allow checks both configured windows for identity against p. Both windows
// are always incremented, even when the other one has already rejected the
// call: otherwise a client that exhausted its daily budget could keep
// consuming hourly slots for free. The returned verdict reflects the binding
// constraint (fewest remaining, ties broken by soonest reset).
func (q *Quota) Allow(ctx context.Context, identity string, p QuotaPolicy, now time.Time) (Verdict, error) {
	verdicts := make([]Verdict, 0, 2)

	if p.HourlyLimit > 0 {
		w := p.HourlyWindow
		if w <= 0 {
			w = time.Hour
		}
		v, err := q.store.Allow(ctx, identity+":"+p.Endpoint+":hour", Policy{Window: w, Max: p.HourlyLimit}, now)
		if err != nil {
			return Verdict{}, err
		}
		verdicts = append(verdicts, v)
	}

	if p.DailyLimit > 0 {
		w := p.DailyWindow
		if w <= 0 {
			w = 24 * time.Hour
		}
		v, err := q.store.Allow(ctx, identity+":"+p.Endpoint+":day", Policy{Window: w, Max: p.DailyLimit}, now)
		if err != nil {
			return Verdict{}, err
		}
		verdicts = append(verdicts, v)
	}

	if len(verdicts) == 0 {
		return Verdict{Allowed: true}, nil
	}

	binding := verdicts[0]
	for _, v := range verdicts[1:] {
		binding = bind(binding, v)
	}
	return binding, nil
}

// bind picks the constraint the caller should report. A rejecting window
// beats an allowing one. When both reject, the later reset is the real
// blocker (the sooner window reopens while the other still denies). When
// both allow, the scarcer budget binds, ties going to the sooner reset.
func bind(a, b Verdict) Verdict {
	switch {
	case !a.Allowed && !b.Allowed:
		if b.ResetAt.After(a.ResetAt) {
			return b
		}
		return a
	case !a.Allowed:
		return a
	case !b.Allowed:
		return b
	}
	if b.Remaining < a.Remaining {
		return b
	}
	if b.Remaining == a.Remaining && b.ResetAt.Before(a.ResetAt) {
		return b
	}
	return a
}
