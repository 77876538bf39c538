package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const windowSeconds = 60

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ Limiter = (*RedisLimiter)(nil)

// RedisLimiter is a per-minute rate limiter backed by Redis, for deployments
// where several instances must share one channel budget. The queue itself
// stays process-local; only the counters are shared.
//
// Unlike WindowLimiter's rolling window, this counts against fixed 60-second
// buckets, so a burst straddling a bucket boundary can admit up to twice the
// limit. Acceptable for a shared provider budget; use WindowLimiter when the
// rolling guarantee matters.
type RedisLimiter struct {
	client         *goredis.Client
	limitPerMinute int64
	now            func() time.Time
	script         *goredis.Script
}

func NewRedisLimiter(client *goredis.Client, limitPerMinute int) (*RedisLimiter, error) {
	return newRedisLimiter(client, int64(limitPerMinute), time.Now)
}

func newRedisLimiter(client *goredis.Client, limitPerMinute int64, nowFn func() time.Time) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerMinute <= 0 {
		limitPerMinute = defaultLimitPerMinute
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &RedisLimiter{
		client:         client,
		limitPerMinute: limitPerMinute,
		now:            nowFn,
		script:         allowScript,
	}, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	normalizedChannel := strings.ToLower(strings.TrimSpace(channel))
	if normalizedChannel == "" {
		return false, fmt.Errorf("channel is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("ratelimit:%s:%d", normalizedChannel, r.now().UTC().Unix()/windowSeconds)
	result, err := r.script.Run(ctx, r.client, []string{key}, r.limitPerMinute, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// NewRedisClient connects and pings a Redis instance from a URL.
func NewRedisClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
