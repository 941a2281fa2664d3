package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/periodpay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/periodpay/internal/observability/metrics"
	"github.com/smallbiznis/periodpay/internal/payment/adapters/newebpay"
	"github.com/smallbiznis/periodpay/internal/payment/builder"
	paymentdomain "github.com/smallbiznis/periodpay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	cancelMaxTries   = 3
	cancelMaxElapsed = 30 * time.Second
)

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle `optional:"true"`
	Log        *zap.Logger
	Builder    *builder.Builder
	Codec      *newebpay.Codec
	Gateway    paymentdomain.Gateway
	Orders     paymentdomain.OrderClient
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	builder    *builder.Builder
	codec      *newebpay.Codec
	gateway    paymentdomain.Gateway
	orders     paymentdomain.OrderClient
	obsMetrics *obsmetrics.Metrics

	// cancellations run detached from the request that scheduled them.
	bgCtx      context.Context
	bgCancel   context.CancelFunc
	inflight   sync.WaitGroup
	newBackOff func() backoff.BackOff
}

func NewService(p Params) *Service {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Service{
		log:        p.Log.Named("payment.service"),
		builder:    p.Builder,
		codec:      p.Codec,
		gateway:    p.Gateway,
		orders:     p.Orders,
		obsMetrics: p.ObsMetrics,
		bgCtx:      bgCtx,
		bgCancel:   bgCancel,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: s.Shutdown,
		})
	}
	return s
}

// CreateOrder builds and encrypts a new mandate, records it with the order
// service and returns what the browser posts to the gateway.
func (s *Service) CreateOrder(ctx context.Context, identity paymentdomain.Identity) (*paymentdomain.CheckoutResponse, error) {
	order := s.builder.NewOrder(identity)
	log := logger.WithOrder(logger.WithContext(ctx, s.log), order.MerOrderNo)

	postData, err := s.codec.Encrypt(order)
	if err != nil {
		s.obsMetrics.RecordCheckout(ctx, "failed")
		return nil, fmt.Errorf("encrypt order: %w", err)
	}
	log.Info("order built",
		zap.Int64("timestamp", order.TimeStamp),
		zap.String("period_type", order.PeriodType),
		zap.Int("period_amt", order.PeriodAmt),
		zap.String("trade_sha", s.codec.TradeSha(postData)),
	)

	if err := s.orders.CreateOrder(ctx, order.MerOrderNo, order, identity.UserID); err != nil {
		log.Error("create order failed", zap.Error(err))
		s.obsMetrics.RecordCheckout(ctx, "failed")
		return nil, err
	}

	s.obsMetrics.RecordCheckout(ctx, "success")
	return &paymentdomain.CheckoutResponse{
		PayGatewayURL: s.gateway.URL(),
		MerchantID:    s.gateway.MerchantID(),
		PostData:      postData,
	}, nil
}

// Unsubscribe terminates the caller's latest mandate with the gateway and,
// once the gateway confirms, cancels the order in the background.
func (s *Service) Unsubscribe(ctx context.Context, identity paymentdomain.Identity, authHeader string) error {
	log := logger.WithContext(ctx, s.log)

	user, err := s.orders.GetUserWithOrders(ctx, authHeader)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrUserNotFound) {
			s.obsMetrics.RecordUnsubscribe(ctx, "not_found")
			return &paymentdomain.LookupError{Err: paymentdomain.ErrUserNotFound, UserID: identity.UserID}
		}
		s.obsMetrics.RecordUnsubscribe(ctx, "failed")
		return err
	}
	if user == nil {
		s.obsMetrics.RecordUnsubscribe(ctx, "not_found")
		return &paymentdomain.LookupError{Err: paymentdomain.ErrUserNotFound, UserID: identity.UserID}
	}
	latest, ok := user.Latest()
	if !ok {
		s.obsMetrics.RecordUnsubscribe(ctx, "not_found")
		return &paymentdomain.LookupError{Err: paymentdomain.ErrEmptyOrders, UserID: identity.UserID}
	}
	log = logger.WithOrder(log, latest.MerchantOrderNo)

	payload, err := s.builder.NewUnsubscribe(latest)
	if err != nil {
		s.obsMetrics.RecordUnsubscribe(ctx, "failed")
		return err
	}
	postData, err := s.codec.Encrypt(payload)
	if err != nil {
		s.obsMetrics.RecordUnsubscribe(ctx, "failed")
		return fmt.Errorf("encrypt unsubscribe: %w", err)
	}

	raw, err := s.gateway.AlterStatus(ctx, postData)
	if err != nil {
		log.Error("alter status failed", zap.Error(err))
		s.obsMetrics.RecordUnsubscribe(ctx, "failed")
		return err
	}

	var result paymentdomain.AlterStatusResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.obsMetrics.RecordUnsubscribe(ctx, "failed")
		return fmt.Errorf("%w: %v", newebpay.ErrGateway, err)
	}
	if result.Status.String() != paymentdomain.StatusSuccess {
		log.Warn("gateway rejected unsubscribe",
			zap.String("status", result.Status.String()),
			zap.String("message", result.Message.String()),
		)
		s.obsMetrics.RecordUnsubscribe(ctx, "rejected")
		return paymentdomain.ErrUnsubscribeRejected
	}

	log.Info("mandate terminated", zap.String("period_no", result.Result.PeriodNo.String()))
	s.obsMetrics.RecordUnsubscribe(ctx, "success")
	s.scheduleCancel(ctx, latest.MerchantOrderNo, authHeader)
	return nil
}

// scheduleCancel cancels the order with the order service off the request
// path. Failures are retried, then logged; they never reach the caller.
func (s *Service) scheduleCancel(reqCtx context.Context, merchantOrderNo, authHeader string) {
	log := logger.WithOrder(logger.WithContext(reqCtx, s.log), merchantOrderNo)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(s.bgCtx, cancelMaxElapsed)
		defer cancel()

		attempt := 0
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			attempt++
			err := s.orders.CancelOrder(ctx, merchantOrderNo, authHeader)
			if err != nil {
				log.Warn("cancel order attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			}
			return struct{}{}, err
		},
			backoff.WithBackOff(s.newBackOff()),
			backoff.WithMaxTries(cancelMaxTries),
			backoff.WithMaxElapsedTime(cancelMaxElapsed),
		)
		if err != nil {
			log.Error("cancel order gave up", zap.Int("attempts", attempt), zap.Error(err))
			s.obsMetrics.RecordCancellation(ctx, "failed")
			return
		}
		log.Info("order cancelled", zap.Int("attempts", attempt))
		s.obsMetrics.RecordCancellation(ctx, "success")
	}()
}

// Shutdown waits for scheduled cancellations. When ctx expires first the
// remaining ones are aborted.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.bgCancel()
		return nil
	case <-ctx.Done():
		s.bgCancel()
		<-done
		return ctx.Err()
	}
}
