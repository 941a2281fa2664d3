package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/periodpay/internal/config"
	"github.com/smallbiznis/periodpay/internal/identity"
	"github.com/smallbiznis/periodpay/internal/observability"
	obsmiddleware "github.com/smallbiznis/periodpay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/periodpay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/periodpay/internal/observability/tracing"
	"github.com/smallbiznis/periodpay/internal/pages"
	paymentdomain "github.com/smallbiznis/periodpay/internal/payment/domain"
	"github.com/smallbiznis/periodpay/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(cfg, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("server is running", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	settings   config.SettingsSource
	log        *zap.Logger
	identity   *identity.Decoder
	paymentSvc paymentdomain.Service
	webhookSvc paymentdomain.WebhookService
	pages      *pages.Renderer
	limiter    *ratelimit.OrderLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Settings   config.SettingsSource
	Log        *zap.Logger
	Identity   *identity.Decoder
	PaymentSvc paymentdomain.Service
	WebhookSvc paymentdomain.WebhookService
	Pages      *pages.Renderer
	Limiter    *ratelimit.OrderLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		settings:   p.Settings,
		log:        p.Log.Named("http"),
		identity:   p.Identity,
		paymentSvc: p.PaymentSvc,
		webhookSvc: p.WebhookSvc,
		pages:      p.Pages,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.RegisterRoutes()
	return svc
}

func (s *Server) RegisterRoutes() {
	r := s.engine

	r.GET("/", s.Index)
	r.GET("/health", s.Health)
	r.GET("/settings", s.GetSettings)

	r.POST("/order", s.AuthRequired(), s.OrderRateLimit(), s.CreateOrder)
	r.POST("/unsubscribe", s.AuthRequired(), s.UnsubscribeLock(), s.Unsubscribe)

	r.GET("/payment/success", s.PaymentPage(pages.KindSuccess))
	r.GET("/payment/failed", s.PaymentPage(pages.KindFailed))

	r.POST("/newebpay_return", s.HandleNewebPayReturn)
	r.POST("/newebpay_notify", s.HandleNewebPayNotify)
}

func (s *Server) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":     "Payment Service",
		"version": s.cfg.AppVersion,
	})
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Payment service is alive"})
}

func (s *Server) GetSettings(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", s.settings.Current().Document())
}
