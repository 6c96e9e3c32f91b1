package ratelimit

import (
	"context"
	"time"

	"github.com/abduss/shopdrop/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "shopdrop:ratelimit:"

// consumeScript increments the window counter only while it is below the limit, so a
// rejected call never takes a slot. The first hit starts the window's expiry.
var consumeScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return 0
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// Redis shares windows between API instances. When Redis cannot answer it degrades to
// the in-process fallback instead of failing the caller.
type Redis struct {
	client   redis.Scripter
	limit    int
	window   time.Duration
	fallback Limiter
	log      *zap.Logger
}

// NewRedis builds a Redis-backed limiter with an in-process fallback.
func NewRedis(client redis.Scripter, limit int, window time.Duration, fallback Limiter, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	if fallback == nil {
		fallback = NewMemory(limit, window, nil)
	}
	return &Redis{
		client:   client,
		limit:    limit,
		window:   window,
		fallback: fallback,
		log:      log,
	}
}

// Consume runs the window script atomically on the Redis server.
func (r *Redis) Consume(ctx context.Context, key string) bool {
	allowed, err := consumeScript.Run(ctx, r.client, []string{redisKeyPrefix + key}, r.limit, r.window.Milliseconds()).Int()
	if err != nil {
		r.log.Warn("redis rate limiter unavailable, using local window",
			zap.String("key", key),
			zap.Error(err),
		)
		return r.fallback.Consume(ctx, key)
	}
	if allowed == 1 {
		metrics.RateLimitDecisions.WithLabelValues("accepted").Inc()
		return true
	}
	metrics.RateLimitDecisions.WithLabelValues("rejected").Inc()
	return false
}
