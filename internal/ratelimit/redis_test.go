package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLimiterWindow(t *testing.T) {
	client := redisClient(t)
	limiter := NewRedis(client, 3, time.Minute, nil, zap.NewNop())
	key := "test-" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), redisKeyPrefix+key) })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.True(t, limiter.Consume(ctx, key))
	}
	assert.False(t, limiter.Consume(ctx, key))
	assert.False(t, limiter.Consume(ctx, key))

	count, err := client.Get(ctx, redisKeyPrefix+key).Int()
	require.NoError(t, err)
	assert.Equal(t, 3, count, "rejections must not increment the counter")
}

type countingLimiter struct{ calls int }

func (c *countingLimiter) Consume(context.Context, string) bool {
	c.calls++
	return true
}

func TestRedisLimiterFallsBackWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	fallback := &countingLimiter{}
	limiter := NewRedis(client, 3, time.Minute, fallback, zap.NewNop())

	assert.True(t, limiter.Consume(context.Background(), "shop1"))
	assert.Equal(t, 1, fallback.calls)
}
