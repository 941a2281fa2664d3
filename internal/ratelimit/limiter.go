package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/periodpay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrRateLimited           = errors.New("rate_limited")
	ErrUnsubscribeInProgress = errors.New("unsubscribe_in_progress")
)

const (
	keyOrderUser       = "periodpay:order:user:%s"
	keyUnsubscribeLock = "periodpay:unsubscribe:lock:%s"

	unsubscribeLockTTL = 30 * time.Second
)

// OrderLimiter throttles order creation per user and serializes unsubscribe
// requests per user. Without Redis every call is allowed.
type OrderLimiter struct {
	bucket *TokenBucket
	locker *Locker
	rate   float64
	burst  int
}

func NewOrderLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*OrderLimiter, error) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return &OrderLimiter{}, nil
	}
	if cfg.RateLimit.OrderRate <= 0 || cfg.RateLimit.OrderBurst <= 0 {
		return nil, errors.New("order rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("redis unreachable, order requests will be rejected until it recovers", zap.String("addr", addr), zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	return newOrderLimiter(client, cfg.RateLimit.OrderRate, cfg.RateLimit.OrderBurst), nil
}

func newOrderLimiter(client redis.UniversalClient, rate float64, burst int) *OrderLimiter {
	return &OrderLimiter{
		bucket: NewTokenBucket(client),
		locker: NewLocker(client),
		rate:   rate,
		burst:  burst,
	}
}

func (l *OrderLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowOrder takes one order token for userID.
func (l *OrderLimiter) AllowOrder(ctx context.Context, userID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyOrderUser, strings.TrimSpace(userID)), l.rate, l.burst)
}

// LockUnsubscribe holds the per-user unsubscribe lock. The returned func
// releases it. ErrUnsubscribeInProgress is returned while another request
// holds it.
func (l *OrderLimiter) LockUnsubscribe(ctx context.Context, userID string) (func(), error) {
	if !l.Enabled() {
		return func() {}, nil
	}
	key := fmt.Sprintf(keyUnsubscribeLock, strings.TrimSpace(userID))
	token, ok, err := l.locker.TryLock(ctx, key, unsubscribeLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnsubscribeInProgress
	}
	return func() {
		_ = l.locker.Release(context.WithoutCancel(ctx), key, token)
	}, nil
}
