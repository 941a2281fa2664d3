package payment

import (
	"github.com/smallbiznis/periodpay/internal/payment/adapters/newebpay"
	"github.com/smallbiznis/periodpay/internal/payment/builder"
	paymentdomain "github.com/smallbiznis/periodpay/internal/payment/domain"
	paymentservice "github.com/smallbiznis/periodpay/internal/payment/service"
	"github.com/smallbiznis/periodpay/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(newebpay.NewCodecFromConfig),
	fx.Provide(newebpay.NewGateway),
	fx.Provide(func(g *newebpay.Gateway) paymentdomain.Gateway { return g }),
	fx.Provide(builder.New),
	fx.Provide(paymentservice.NewService),
	fx.Provide(func(s *paymentservice.Service) paymentdomain.Service { return s }),
	fx.Provide(webhook.NewService),
)
