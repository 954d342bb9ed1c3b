package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/observability/logger"
	"github.com/payssd/chapchap-sub000/internal/observability/metrics"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	paymentservice "github.com/payssd/chapchap-sub000/internal/payment/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewServer),
	fx.Invoke(RegisterLifecycle),
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client    `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
	Payments *paymentservice.Service
	Webhooks domain.WebhookService
}

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	db         *gorm.DB
	redis      *redis.Client
	metrics    *metrics.Metrics
	paymentSvc *paymentservice.Service
	webhookSvc domain.WebhookService
	engine     *gin.Engine
}

func NewServer(p Params) *Server {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:        p.Cfg,
		log:        p.Log.Named("http"),
		db:         p.DB,
		redis:      p.Redis,
		metrics:    p.Metrics,
		paymentSvc: p.Payments,
		webhookSvc: p.Webhooks,
		engine:     gin.New(),
	}
	s.engine.Use(
		gin.Recovery(),
		logger.GinMiddleware(logger.MiddlewareConfig{
			Logger:    s.log,
			SkipPaths: []string{"/healthz", "/ready", "/metrics"},
		}),
		s.metrics.GinMiddleware(),
	)
	s.RegisterRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	s.RegisterSystemRoutes()

	s.engine.POST("/webhooks/payments", s.ReceivePaymentWebhook)

	api := s.engine.Group("/api", s.UserRequired())
	{
		api.GET("/payment-providers", s.ListPaymentProviders)
		api.GET("/payment-providers/:id", s.GetPaymentProvider)

		api.GET("/integrations", s.ListIntegrations)
		api.POST("/integrations", s.ConnectIntegration)
		api.GET("/integrations/:id", s.GetIntegration)
		api.DELETE("/integrations/:id", s.DeleteIntegration)
		api.POST("/integrations/:id/default", s.SetDefaultIntegration)
		api.POST("/integrations/:id/active", s.SetIntegrationActive)
		api.POST("/integrations/:id/verify", s.VerifyIntegration)

		api.POST("/invoices/:id/payment-link", s.GeneratePaymentLink)
		api.POST("/invoices/:id/mobile-payment", s.InitiateMobilePayment)
		api.POST("/invoices/:id/verify-payment", s.VerifyInvoicePayment)
		api.GET("/invoices/:id/payment-methods", s.ListInvoicePaymentMethods)
	}
}

// RegisterLifecycle binds the HTTP listener to the fx lifecycle.
func RegisterLifecycle(lc fx.Lifecycle, s *Server) {
	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
