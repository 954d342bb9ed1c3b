package service

import (
	"github.com/payssd/chapchap-sub000/internal/clock"
	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/observability/metrics"
	"github.com/payssd/chapchap-sub000/internal/payment/connector"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	Connector    *connector.Connector
	Reconciler   domain.Reconciler
	Integrations domain.IntegrationRepository
	Invoices     domain.InvoiceRepository
	Clock        clock.Clock
	Metrics      *metrics.Metrics `optional:"true"`
}

// Service orchestrates integrations and invoice payments for a user. Every
// method is scoped to the caller's user id.
type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	publicBaseURL string
	connector     *connector.Connector
	reconciler    domain.Reconciler
	integrations  domain.IntegrationRepository
	invoices      domain.InvoiceRepository
	clock         clock.Clock
	metrics       *metrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		publicBaseURL: p.Cfg.PublicBaseURL,
		connector:     p.Connector,
		reconciler:    p.Reconciler,
		integrations:  p.Integrations,
		invoices:      p.Invoices,
		clock:         p.Clock,
		metrics:       p.Metrics,
	}
}
