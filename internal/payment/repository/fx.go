package repository

import "go.uber.org/fx"

var Module = fx.Module("payment.repository",
	fx.Provide(
		NewIntegrationRepository,
		NewInvoiceRepository,
		NewWebhookEventRepository,
	),
)
