package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jobelix-dev/quotagate/internal/ratelimit"
)

type counter struct {
	count int
	reset time.Time
}

// Store is an in-process fixed-window counter store. A counter whose reset
// time has passed is treated as absent on the next access, whether or not
// the sweeper has removed it yet.
type Store struct {
	mu       sync.Mutex
	counters map[string]*counter

	sweepEvery time.Duration
	stopOnce   sync.Once
	stop       chan struct{}
	done       chan struct{}
}

// New creates a Store and, if sweepEvery > 0, starts a background sweeper
// that purges expired counters to bound memory.
func New(sweepEvery time.Duration) *Store {
	s := &Store{
		counters:   make(map[string]*counter),
		sweepEvery: sweepEvery,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if sweepEvery > 0 {
		go s.sweepLoop()
	} else {
		close(s.done)
	}
	return s
}

// Allow performs one atomic check-and-increment for key. Rejected calls still
// increment the counter, and a rejection never moves the reset time.
func (s *Store) Allow(_ context.Context, key string, p ratelimit.Policy, now time.Time) (ratelimit.Verdict, error) {
	if p.Max <= 0 || p.Window <= 0 {
		return ratelimit.Verdict{Allowed: true, Limit: p.Max, Remaining: p.Max}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !now.Before(c.reset) {
		c = &counter{count: 1, reset: now.Add(p.Window)}
		s.counters[key] = c
		return ratelimit.Verdict{
			Allowed:   true,
			Limit:     p.Max,
			Remaining: p.Max - 1,
			ResetAt:   c.reset,
		}, nil
	}

	c.count++
	v := ratelimit.Verdict{
		Allowed:   c.count <= p.Max,
		Limit:     p.Max,
		Remaining: p.Max - c.count,
		ResetAt:   c.reset,
	}
	if v.Remaining < 0 {
		v.Remaining = 0
	}
	return v, nil
}

// Sweep removes every counter whose window has already expired and reports
// how many were dropped. Correctness never depends on it running.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, c := range s.counters {
		if !now.Before(c.reset) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of counters currently held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Close stops the background sweeper.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *Store) sweepLoop() {
	defer close(s.done)
	t := time.NewTicker(s.sweepEvery)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			s.Sweep(now)
		case <-s.stop:
			return
		}
	}
}
