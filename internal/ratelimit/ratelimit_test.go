package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	rl := NewMemoryLimiter(2, time.Minute)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	ctx := context.Background()

	d, _ := rl.Allow(ctx, "ip:1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, _ = rl.Allow(ctx, "ip:1")
	assert.True(t, d.Allowed)

	d, _ = rl.Allow(ctx, "ip:1")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	// other keys are independent
	d, _ = rl.Allow(ctx, "ip:2")
	assert.True(t, d.Allowed)

	clock = clock.Add(61 * time.Second)
	d, _ = rl.Allow(ctx, "ip:1")
	assert.True(t, d.Allowed)
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestRedisLimiter(t *testing.T) {
	rdb, mr := newTestRedis(t)
	rl := NewRedisLimiter(rdb, "auth", 2, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := rl.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := rl.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.True(t, mr.Exists("rl:auth:ip:10.0.0.1"))

	mr.FastForward(11 * time.Second)

	d, err = rl.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	rdb, mr := newTestRedis(t)
	mr.Close()

	_, err := NewRedisLimiter(rdb, "auth", 1, time.Second).Allow(context.Background(), "k")
	assert.Error(t, err)
}
