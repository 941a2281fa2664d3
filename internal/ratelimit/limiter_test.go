package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/periodpay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, rate float64, burst int) (*OrderLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newOrderLimiter(client, rate, burst), mr
}

func TestAllowOrderExhaustsBurst(t *testing.T) {
	limiter, _ := newTestLimiter(t, 0.001, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowOrder(ctx, "42")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i)
		assert.Equal(t, 2, res.Limit)
	}

	res, err := limiter.AllowOrder(ctx, "42")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestAllowOrderIsPerUser(t *testing.T) {
	limiter, _ := newTestLimiter(t, 0.001, 1)
	ctx := context.Background()

	res, err := limiter.AllowOrder(ctx, "a")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.AllowOrder(ctx, "b")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowOrder(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestAllowOrderSetsBucketTTL(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, 5)

	_, err := limiter.AllowOrder(context.Background(), "7")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, mr.TTL("periodpay:order:user:7"))
}

func TestLockUnsubscribe(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, 1)
	ctx := context.Background()

	release, err := limiter.LockUnsubscribe(ctx, "42")
	require.NoError(t, err)
	assert.True(t, mr.Exists("periodpay:unsubscribe:lock:42"))

	_, err = limiter.LockUnsubscribe(ctx, "42")
	require.ErrorIs(t, err, ErrUnsubscribeInProgress)

	release()
	assert.False(t, mr.Exists("periodpay:unsubscribe:lock:42"))

	release, err = limiter.LockUnsubscribe(ctx, "42")
	require.NoError(t, err)
	release()
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, 1)
	ctx := context.Background()

	release, err := limiter.LockUnsubscribe(ctx, "42")
	require.NoError(t, err)

	// Lock expired and was taken by another request.
	require.NoError(t, mr.Set("periodpay:unsubscribe:lock:42", "someone-else"))
	release()

	got, err := mr.Get("periodpay:unsubscribe:lock:42")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLimiterWithoutRedisAllowsEverything(t *testing.T) {
	limiter, err := NewOrderLimiter(nil, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	for i := 0; i < 10; i++ {
		res, err := limiter.AllowOrder(context.Background(), "42")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	release, err := limiter.LockUnsubscribe(context.Background(), "42")
	require.NoError(t, err)
	release()
}

func TestNilLimiterAllows(t *testing.T) {
	var limiter *OrderLimiter
	res, err := limiter.AllowOrder(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewOrderLimiterRejectsBadRate(t *testing.T) {
	_, err := NewOrderLimiter(nil, config.Config{
		Redis:     config.RedisConfig{Addr: "localhost:6379"},
		RateLimit: config.RateLimitConfig{OrderRate: 0, OrderBurst: 1},
	}, zap.NewNop())
	require.Error(t, err)
}

func TestTokenBucketValidatesArguments(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 1, 0)
	assert.Error(t, err)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, defaultBucketTTL(1, 5))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
}
