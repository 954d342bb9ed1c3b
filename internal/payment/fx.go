package payment

import (
	"github.com/payssd/chapchap-sub000/internal/payment/adapters"
	"github.com/payssd/chapchap-sub000/internal/payment/connector"
	"github.com/payssd/chapchap-sub000/internal/payment/reconcile"
	"github.com/payssd/chapchap-sub000/internal/payment/repository"
	paymentservice "github.com/payssd/chapchap-sub000/internal/payment/service"
	"github.com/payssd/chapchap-sub000/internal/payment/tokenstore"
	"github.com/payssd/chapchap-sub000/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	repository.Module,
	tokenstore.Module,
	connector.Module,
	reconcile.Module,
	fx.Provide(adapters.NewDefaultRegistry),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
