package server

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/periodpay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/periodpay/internal/observability/metrics"
	"github.com/smallbiznis/periodpay/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitReasonUserRate        = "user-rate"
	rateLimitReasonUnsubscribeBusy = "unsubscribe-in-progress"
)

// OrderRateLimit throttles order creation per caller.
func (s *Server) OrderRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		id, _ := identityFromContext(c)
		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()

		res, err := s.limiter.AllowOrder(ctx, id.UserID)
		if err != nil {
			logger.FromContext(ctx).Warn("order rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", retryAfterSeconds(res.RetryAfter))
			s.denyRateLimit(c, endpoint, rateLimitReasonUserRate, ratelimit.ErrRateLimited)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

// UnsubscribeLock keeps a single unsubscribe per caller in flight.
func (s *Server) UnsubscribeLock() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		id, _ := identityFromContext(c)
		ctx := c.Request.Context()

		release, err := s.limiter.LockUnsubscribe(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, ratelimit.ErrUnsubscribeInProgress) {
				s.denyRateLimit(c, normalizeRateLimitEndpoint(c), rateLimitReasonUnsubscribeBusy, err)
				return
			}
			logger.FromContext(ctx).Warn("unsubscribe lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		defer release()

		c.Next()
	}
}

func (s *Server) denyRateLimit(c *gin.Context, endpoint, reason string, err error) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("request rate limited",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, s.obsMetrics)

	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
