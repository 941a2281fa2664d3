package main

import (
	"github.com/smallbiznis/periodpay/internal/clock"
	"github.com/smallbiznis/periodpay/internal/config"
	"github.com/smallbiznis/periodpay/internal/identity"
	"github.com/smallbiznis/periodpay/internal/observability"
	"github.com/smallbiznis/periodpay/internal/orderapi"
	"github.com/smallbiznis/periodpay/internal/pages"
	"github.com/smallbiznis/periodpay/internal/payment"
	"github.com/smallbiznis/periodpay/internal/ratelimit"
	"github.com/smallbiznis/periodpay/internal/server"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Collaborators
		orderapi.Module,
		identity.Module,
		ratelimit.Module,

		// Functional Domains
		payment.Module,
		pages.Module,
		server.Module,
	)
	app.Run()
}
