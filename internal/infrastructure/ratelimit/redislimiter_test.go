package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})

	return client
}

func TestRedisLimiter_Allow_PerMinute(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client)
	ctx := context.Background()

	limits := Limits{PerMinute: 5}
	key := "203.0.113.7"

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, key, limits)
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, key, limits)
	require.NoError(t, err)
	assert.False(t, allowed, "6th attempt should be denied")
}

func TestRedisLimiter_Allow_PerHour(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client)
	ctx := context.Background()

	limits := Limits{PerHour: 3}
	key := "203.0.113.8"

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, key, limits)
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, key, limits)
	require.NoError(t, err)
	assert.False(t, allowed, "4th attempt should be denied")
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client)
	ctx := context.Background()

	limits := Limits{PerMinute: 1}

	allowed, err := limiter.Allow(ctx, "203.0.113.9", limits)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "203.0.113.9", limits)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "203.0.113.10", limits)
	require.NoError(t, err)
	assert.True(t, allowed, "other clients are unaffected")
}

func TestRedisLimiter_Reset(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client)
	ctx := context.Background()

	limits := Limits{PerMinute: 2}
	key := "203.0.113.11"

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, key, limits)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := limiter.Allow(ctx, key, limits)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, key))

	allowed, err = limiter.Allow(ctx, key, limits)
	require.NoError(t, err)
	assert.True(t, allowed, "reset clears the windows")
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client)
	ctx := context.Background()

	// A 1-per-minute limit with entries aged out manually: drop the recorded
	// attempt below the window start and a new attempt is allowed again.
	limits := Limits{PerMinute: 1}
	key := "203.0.113.12"

	allowed, err := limiter.Allow(ctx, key, limits)
	require.NoError(t, err)
	assert.True(t, allowed)

	redisKey := limiter.getKey(key, time.Minute)
	require.NoError(t, client.ZRemRangeByScore(ctx, redisKey, "0", "+inf").Err())

	allowed, err = limiter.Allow(ctx, key, limits)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNoop_AlwaysAllows(t *testing.T) {
	var limiter Limiter = Noop{}
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		allowed, err := limiter.Allow(ctx, "anyone", Limits{PerMinute: 1})
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
