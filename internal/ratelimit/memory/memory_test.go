package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobelix-dev/quotagate/internal/ratelimit"
)

var ctx = context.Background()

func TestWindowBoundary(t *testing.T) {
	s := New(0)
	defer s.Close()

	p := ratelimit.Policy{Window: time.Minute, Max: 70}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	var last ratelimit.Verdict
	for i := 0; i < 70; i++ {
		v, err := s.Allow(ctx, "1.2.3.4", p, now)
		require.NoError(t, err)
		require.True(t, v.Allowed, "call %d should be allowed", i+1)
		require.Equal(t, 70-(i+1), v.Remaining)
		last = v
	}
	require.Equal(t, 0, last.Remaining)

	v, err := s.Allow(ctx, "1.2.3.4", p, now.Add(30*time.Second))
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Equal(t, 0, v.Remaining)
	// rejection must not move the window
	require.Equal(t, last.ResetAt, v.ResetAt)
}

func TestWindowExpiryResetsCount(t *testing.T) {
	s := New(0)
	defer s.Close()

	p := ratelimit.Policy{Window: time.Minute, Max: 3}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := s.Allow(ctx, "k", p, now)
		require.NoError(t, err)
	}

	later := now.Add(time.Minute) // exactly at reset counts as expired
	v, err := s.Allow(ctx, "k", p, later)
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Equal(t, 2, v.Remaining)
	require.Equal(t, later.Add(time.Minute), v.ResetAt)
}

func TestPerKeyIndependence(t *testing.T) {
	s := New(0)
	defer s.Close()

	p := ratelimit.Policy{Window: time.Minute, Max: 1}
	now := time.Now()

	v, err := s.Allow(ctx, "a", p, now)
	require.NoError(t, err)
	require.True(t, v.Allowed)

	v, err = s.Allow(ctx, "a", p, now)
	require.NoError(t, err)
	require.False(t, v.Allowed)

	v, err = s.Allow(ctx, "b", p, now)
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Equal(t, 0, v.Remaining)
}

func TestRejectedCallsStillCount(t *testing.T) {
	s := New(0)
	defer s.Close()

	p := ratelimit.Policy{Window: time.Minute, Max: 1}
	now := time.Now()

	v, _ := s.Allow(ctx, "k", p, now)
	require.True(t, v.Allowed)
	require.Equal(t, 0, v.Remaining)

	v, _ = s.Allow(ctx, "k", p, now)
	require.False(t, v.Allowed)
	require.Equal(t, 0, v.Remaining)

	// count keeps climbing past the cap, not frozen at it
	v, _ = s.Allow(ctx, "k", p, now)
	require.False(t, v.Allowed)
	require.Equal(t, 0, v.Remaining)
}

func TestConcurrentSameKeyNeverOverAdmits(t *testing.T) {
	s := New(0)
	defer s.Close()

	const limit = 70
	const extra = 30
	p := ratelimit.Policy{Window: time.Minute, Max: limit}
	now := time.Now()

	var wg sync.WaitGroup
	results := make(chan bool, limit+extra)
	for i := 0; i < limit+extra; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Allow(ctx, "hot", p, now)
			require.NoError(t, err)
			results <- v.Allowed
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	require.Equal(t, limit, admitted)
}

func TestSweepKeepsLiveCounters(t *testing.T) {
	s := New(0)
	defer s.Close()

	p := ratelimit.Policy{Window: time.Minute, Max: 5}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	_, _ = s.Allow(ctx, "live", p, now)
	_, _ = s.Allow(ctx, "live", p, now)
	_, _ = s.Allow(ctx, "dead", p, now.Add(-2*time.Minute))
	require.Equal(t, 2, s.Len())

	removed := s.Sweep(now.Add(30 * time.Second))
	require.Equal(t, 1, removed)
	require.Equal(t, 1, s.Len())

	// the surviving counter is unchanged
	v, err := s.Allow(ctx, "live", p, now.Add(30*time.Second))
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Equal(t, 2, v.Remaining)
	require.Equal(t, now.Add(time.Minute), v.ResetAt)
}

func TestLazyExpiryWithoutSweep(t *testing.T) {
	s := New(0)
	defer s.Close()

	p := ratelimit.Policy{Window: time.Minute, Max: 1}
	now := time.Now()

	v, _ := s.Allow(ctx, "k", p, now)
	require.True(t, v.Allowed)
	v, _ = s.Allow(ctx, "k", p, now)
	require.False(t, v.Allowed)

	// no sweep ran, but a logically expired counter must not deny
	v, _ = s.Allow(ctx, "k", p, now.Add(2*time.Minute))
	require.True(t, v.Allowed)
}

func TestZeroPolicyAlwaysAllows(t *testing.T) {
	s := New(0)
	defer s.Close()

	v, err := s.Allow(ctx, "k", ratelimit.Policy{}, time.Now())
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Equal(t, 0, s.Len())
}
