// Package redisstore backs the fixed-window counter store with Redis so that
// horizontally scaled deployments share one set of counts. The contract is
// identical to the in-memory store; atomicity comes from a Lua script instead
// of a process-local mutex.
package redisstore

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/jobelix-dev/quotagate/internal/ratelimit"
)

// Counter key lives exactly as long as its window: INCR creates it, the
// first increment attaches the TTL, PTTL tells us when it resets.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: strings.TrimSpace(prefix)}
}

func (s *Store) Allow(ctx context.Context, key string, p ratelimit.Policy, now time.Time) (ratelimit.Verdict, error) {
	if p.Max <= 0 || p.Window <= 0 {
		return ratelimit.Verdict{Allowed: true, Limit: p.Max, Remaining: p.Max}, nil
	}

	res, err := incrScript.Run(ctx, s.client, []string{s.buildKey(key)}, p.Window.Milliseconds()).Result()
	if err != nil {
		return ratelimit.Verdict{}, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return ratelimit.Verdict{}, errors.New("redisstore: unexpected script reply")
	}
	count, ok1 := vals[0].(int64)
	ttl, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return ratelimit.Verdict{}, errors.New("redisstore: unexpected script reply type")
	}
	if ttl < 0 {
		// Key somehow lost its TTL; treat as a fresh window.
		ttl = p.Window.Milliseconds()
	}

	v := ratelimit.Verdict{
		Allowed:   count <= int64(p.Max),
		Limit:     p.Max,
		Remaining: p.Max - int(count),
		ResetAt:   now.Add(time.Duration(ttl) * time.Millisecond),
	}
	if v.Remaining < 0 {
		v.Remaining = 0
	}
	return v, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
