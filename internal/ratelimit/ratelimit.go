// Package ratelimit provides an atomic fixed-window rate limiter on Redis.
// The subscribe endpoint uses it to keep a single IP from flooding the
// queue with signups. The check-and-increment runs in one Lua script,
// avoiding the GET → check → INCR race.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var windowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current >= limit then
	return {0, current}
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
	redis.call("EXPIRE", key, ttl)
end
return {1, newVal}
`)

// Limiter is a fixed-window counter limiter keyed by caller identity.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// New creates a limiter allowing limit events per window for each key.
func New(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow reports whether the event identified by key may proceed, counting it
// if so. Redis errors fail open: a broken limiter must not take down signups.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	res, err := windowScript.Run(ctx, l.client, []string{redisKey},
		l.limit, int(l.window.Seconds())).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit check: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 1 {
		return true, fmt.Errorf("rate limit check: unexpected reply %v", res)
	}
	allowed, _ := vals[0].(int64)
	return allowed == 1, nil
}
