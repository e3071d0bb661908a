package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"placefinder/internal/adapters/observability"
	"placefinder/internal/domain"
)

// slidingWindow keeps one sorted-set member per admitted request, scored by its
// timestamp in ms. Returns {allowed, remaining, reset_ms}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, limit - count, reset}
`)

// Redis is a sliding-window limiter shared by every replica pointing at the same Redis.
type Redis struct {
	c      *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(addr, pass string, db int, limit int, window time.Duration) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), limit, window)
}

func NewRedisWithClient(c *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{c: c, prefix: "placefinder:ratelimit:", limit: limit, window: window, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (domain.RateDecision, error) {
	now := r.now()
	res, err := slidingWindow.Run(ctx, r.c, []string{r.prefix + key},
		now.UnixMilli(), r.window.Milliseconds(), r.limit, uuid.NewString()).Int64Slice()
	if err != nil {
		observability.ObserveRateLimitError("redis")
		return domain.RateDecision{}, fmt.Errorf("ratelimit script: %w", err)
	}
	if len(res) != 3 {
		return domain.RateDecision{}, fmt.Errorf("ratelimit script: unexpected reply %v", res)
	}
	d := domain.RateDecision{
		Allowed:   res[0] == 1,
		Limit:     r.limit,
		Remaining: int(res[1]),
		Reset:     time.UnixMilli(res[2]),
	}
	observability.ObserveRateLimit("redis", d.Allowed)
	return d, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.c.Close() }

// SetClock is for tests.
func (r *Redis) SetClock(now func() time.Time) { r.now = now }
