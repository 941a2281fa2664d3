package webhook

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/periodpay/internal/observability/logger"
	"github.com/smallbiznis/periodpay/internal/observability/metrics"
	"github.com/smallbiznis/periodpay/internal/payment/adapters/newebpay"
	paymentdomain "github.com/smallbiznis/periodpay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	eventReturn = "return"
	eventNotify = "notify"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Codec   *newebpay.Codec
	Orders  paymentdomain.OrderClient
	Metrics *metrics.Metrics `optional:"true"`
}

// Service turns gateway callbacks into order-service updates. Every callback
// is handled independently; duplicates are not filtered here.
type Service struct {
	log     *zap.Logger
	codec   *newebpay.Codec
	orders  paymentdomain.OrderClient
	metrics *metrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		log:     p.Log.Named("payment.webhook"),
		codec:   p.Codec,
		orders:  p.Orders,
		metrics: p.Metrics,
	}
}

// HandleReturn processes the first-charge callback. Any error means the
// browser is sent to the failure page.
func (s *Service) HandleReturn(ctx context.Context, body paymentdomain.CallbackBody) (*paymentdomain.PaymentResult, error) {
	if body.Empty {
		s.record(ctx, eventReturn, paymentdomain.ErrEmptyBody)
		return nil, paymentdomain.ErrEmptyBody
	}
	result, err := s.process(ctx, eventReturn, body)
	s.record(ctx, eventReturn, err)
	return result, err
}

// HandleNotify processes a recurring-charge callback. The gateway also calls
// it with an empty body on the first charge; that call is acknowledged
// without any further work and returns a nil result.
func (s *Service) HandleNotify(ctx context.Context, body paymentdomain.CallbackBody) (*paymentdomain.PaymentResult, error) {
	if body.Empty {
		s.record(ctx, eventNotify, paymentdomain.ErrEmptyBody)
		return nil, nil
	}
	result, err := s.process(ctx, eventNotify, body)
	s.record(ctx, eventNotify, err)
	return result, err
}

func (s *Service) process(ctx context.Context, event string, body paymentdomain.CallbackBody) (*paymentdomain.PaymentResult, error) {
	log := logger.WithContext(ctx, s.log).With(zap.String("event_type", event))

	period := strings.TrimSpace(body.Period)
	if period == "" {
		log.Warn("callback without period")
		return nil, paymentdomain.ErrInvalidPayload
	}

	raw, err := s.codec.Decrypt(period)
	if err != nil {
		log.Warn("callback decode failed", zap.Error(err))
		return nil, err
	}

	result, err := paymentdomain.ParsePaymentResult(raw)
	if err != nil {
		log.Warn("callback payload invalid", zap.Error(err))
		return result, err
	}
	log = logger.WithOrder(log, result.MerchantOrderNo())

	if !result.Succeeded() {
		log.Info("gateway reported unsuccessful payment",
			zap.String("status", result.Status.String()),
			zap.String("message", result.Message.String()),
		)
		return result, paymentdomain.ErrUnsuccessfulPayment
	}

	if err := s.orders.UpdateOrder(ctx, result.MerchantOrderNo(), result.Raw, true); err != nil {
		log.Error("order update failed", zap.Error(err))
		return result, err
	}

	log.Info("payment complete",
		zap.String("period_no", result.Result.PeriodNo.String()),
		zap.String("trade_no", result.Result.TradeNo.String()),
	)
	return result, nil
}

func (s *Service) record(ctx context.Context, event string, err error) {
	s.metrics.RecordPaymentEvent(ctx, event, outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, paymentdomain.ErrEmptyBody):
		return "empty"
	case errors.Is(err, newebpay.ErrDecode), errors.Is(err, paymentdomain.ErrInvalidPayload):
		return "invalid"
	case errors.Is(err, paymentdomain.ErrUnsuccessfulPayment):
		return "unsuccessful"
	default:
		return "upstream_error"
	}
}
