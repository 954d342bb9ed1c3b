package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/observability/logger"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/payment/registry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentLink is the outcome of GeneratePaymentLink.
type PaymentLink struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	IntegrationID uuid.UUID       `json:"integration_id"`
	Provider      domain.Provider `json:"provider"`
	PaymentLink   string          `json:"payment_link"`
	Reference     string          `json:"reference"`
}

// MobilePayment is the outcome of InitiateMobilePayment.
type MobilePayment struct {
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	IntegrationID     uuid.UUID       `json:"integration_id"`
	Provider          domain.Provider `json:"provider"`
	Reference         string          `json:"reference"`
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
	Message           string          `json:"message,omitempty"`
}

// Verification is the outcome of VerifyInvoicePayment. Reconciled is set
// when the provider reported success.
type Verification struct {
	InvoiceID  uuid.UUID                  `json:"invoice_id"`
	Provider   domain.Provider            `json:"provider"`
	Result     domain.VerifyPaymentResult `json:"result"`
	Reconciled *domain.ReconcileResult    `json:"reconciled,omitempty"`
}

// GeneratePaymentLink creates a hosted checkout link for an invoice. A nil
// integration id selects the user's default gateway.
func (s *Service) GeneratePaymentLink(ctx context.Context, userID, invoiceID, integrationID uuid.UUID) (*PaymentLink, error) {
	invoice, integration, adapter, err := s.prepare(ctx, userID, invoiceID, integrationID, domain.IntegrationTypeGateway)
	if err != nil {
		return nil, err
	}

	res := adapter.CreatePaymentLink(ctx, domain.PaymentLinkRequest{
		Amount:        invoice.Total,
		Currency:      invoice.Currency,
		Email:         invoice.ClientEmail,
		CustomerName:  invoice.ClientName,
		Phone:         invoice.ClientPhone,
		CallbackURL:   s.callbackURL(integration),
		Description:   "Invoice " + invoice.InvoiceNumber,
		InvoiceNumber: invoice.InvoiceNumber,
		Metadata: map[string]string{
			"invoice_id":     invoice.ID.String(),
			"integration_id": integration.ID.String(),
		},
	})
	s.metrics.ObserveProviderRequest(integration.Provider.String(), "create_payment_link", res.Success)
	if !res.Success {
		return nil, &domain.ProviderError{Provider: integration.Provider, Operation: "create_payment_link", Message: res.Error}
	}

	method := &domain.InvoicePaymentMethod{
		Provider:         integration.Provider,
		PaymentLink:      res.PaymentLink,
		PaymentReference: res.Reference,
	}
	if err := s.recordMethod(ctx, invoice, integration, method, res.Reference); err != nil {
		return nil, err
	}

	logger.With(ctx, s.log).Info("payment link created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("provider", integration.Provider.String()),
		zap.String("reference", res.Reference))
	return &PaymentLink{
		InvoiceID:     invoice.ID,
		IntegrationID: integration.ID,
		Provider:      integration.Provider,
		PaymentLink:   res.PaymentLink,
		Reference:     res.Reference,
	}, nil
}

// InitiateMobilePayment pushes a payment prompt to the payer's phone. An
// empty phone falls back to the invoice's client phone; a nil integration id
// selects the user's default mobile money provider.
func (s *Service) InitiateMobilePayment(ctx context.Context, userID, invoiceID, integrationID uuid.UUID, phone string) (*MobilePayment, error) {
	invoice, integration, adapter, err := s.prepare(ctx, userID, invoiceID, integrationID, domain.IntegrationTypeMobileMoney)
	if err != nil {
		return nil, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		phone = strings.TrimSpace(invoice.ClientPhone)
	}
	if phone == "" {
		return nil, domain.ErrInvalidPhone
	}

	res := adapter.InitiateMobilePayment(ctx, domain.MobilePaymentRequest{
		Amount:           invoice.Total,
		Currency:         invoice.Currency,
		Phone:            phone,
		Email:            invoice.ClientEmail,
		AccountReference: invoice.InvoiceNumber,
		Description:      "Invoice " + invoice.InvoiceNumber,
		CallbackURL:      s.callbackURL(integration),
	})
	s.metrics.ObserveProviderRequest(integration.Provider.String(), "initiate_mobile_payment", res.Success)
	if !res.Success {
		return nil, &domain.ProviderError{Provider: integration.Provider, Operation: "initiate_mobile_payment", Message: res.Error}
	}

	// M-Pesa callbacks only carry the checkout request id.
	lookup := res.Reference
	if res.CheckoutRequestID != "" {
		lookup = res.CheckoutRequestID
	}
	method := &domain.InvoicePaymentMethod{
		Provider:          integration.Provider,
		PaymentReference:  res.Reference,
		CheckoutRequestID: res.CheckoutRequestID,
	}
	if err := s.recordMethod(ctx, invoice, integration, method, lookup); err != nil {
		return nil, err
	}

	logger.With(ctx, s.log).Info("mobile payment initiated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("provider", integration.Provider.String()),
		zap.String("reference", lookup))
	return &MobilePayment{
		InvoiceID:         invoice.ID,
		IntegrationID:     integration.ID,
		Provider:          integration.Provider,
		Reference:         res.Reference,
		CheckoutRequestID: res.CheckoutRequestID,
		Message:           res.Message,
	}, nil
}

// VerifyInvoicePayment polls the provider for the invoice's latest payment
// attempt and settles the invoice when the provider reports success. It is
// safe to call repeatedly.
func (s *Service) VerifyInvoicePayment(ctx context.Context, userID, invoiceID, integrationID uuid.UUID) (*Verification, error) {
	invoice, err := s.invoiceFor(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	method, err := s.latestMethod(ctx, invoice, integrationID)
	if err != nil {
		return nil, err
	}
	integration, err := s.integrationFor(ctx, nil, userID, method.IntegrationID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.connector.Adapter(integration)
	if err != nil {
		return nil, err
	}

	res := adapter.VerifyPayment(ctx, domain.VerifyPaymentRequest{
		Reference:         method.PaymentReference,
		CheckoutRequestID: method.CheckoutRequestID,
	})
	s.metrics.ObserveProviderRequest(integration.Provider.String(), "verify_payment", res.Status != domain.PaymentStatusFailed)

	out := &Verification{InvoiceID: invoice.ID, Provider: integration.Provider, Result: res}
	if res.Status != domain.PaymentStatusSuccess {
		return out, nil
	}

	event := verifiedEvent(integration.Provider, method, res)
	event.OwnerID = invoice.UserID
	applied, err := s.reconciler.Apply(ctx, event)
	if err != nil {
		return nil, err
	}
	out.Reconciled = &applied
	return out, nil
}

func (s *Service) ListInvoicePaymentMethods(ctx context.Context, userID, invoiceID uuid.UUID) ([]domain.InvoicePaymentMethod, error) {
	invoice, err := s.invoiceFor(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.invoices.ListPaymentMethods(ctx, nil, invoice.ID)
}

// prepare loads a payable invoice and a usable integration and builds its adapter.
func (s *Service) prepare(ctx context.Context, userID, invoiceID, integrationID uuid.UUID, fallback domain.IntegrationType) (*domain.Invoice, *domain.PaymentIntegration, domain.PaymentAdapter, error) {
	invoice, err := s.invoiceFor(ctx, userID, invoiceID)
	if err != nil {
		return nil, nil, nil, err
	}
	switch invoice.Status {
	case domain.InvoiceStatusPaid:
		return nil, nil, nil, domain.ErrInvoiceAlreadyPaid
	case domain.InvoiceStatusCancelled:
		return nil, nil, nil, domain.ErrInvoiceNotPayable
	}
	if !invoice.Total.IsPositive() {
		return nil, nil, nil, domain.ErrInvalidAmount
	}

	var integration *domain.PaymentIntegration
	if integrationID == uuid.Nil {
		integration, err = s.integrations.FindDefault(ctx, nil, userID, fallback)
		if err == nil && integration == nil {
			err = domain.ErrIntegrationNotFound
		}
	} else {
		integration, err = s.integrationFor(ctx, nil, userID, integrationID)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if !integration.IsActive {
		return nil, nil, nil, domain.ErrIntegrationInactive
	}
	if cfg, ok := registry.GetProviderConfig(integration.Provider); ok && !cfg.SupportsCurrency(invoice.Currency) {
		return nil, nil, nil, domain.ErrInvalidCurrency
	}

	adapter, err := s.connector.Adapter(integration)
	if err != nil {
		return nil, nil, nil, err
	}
	return invoice, integration, adapter, nil
}

// recordMethod upserts the invoice/integration link and points the invoice at
// the reference the next webhook will carry.
func (s *Service) recordMethod(ctx context.Context, invoice *domain.Invoice, integration *domain.PaymentIntegration, method *domain.InvoicePaymentMethod, lookup string) error {
	now := s.clock.Now(ctx)
	method.ID = uuid.New()
	method.InvoiceID = invoice.ID
	method.IntegrationID = integration.ID
	method.IsActive = true
	method.CreatedAt = now
	method.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.invoices.UpsertPaymentMethod(ctx, tx, method); err != nil {
			return err
		}
		if lookup == "" {
			return nil
		}
		return s.invoices.SetPaymentReference(ctx, tx, invoice.ID, lookup)
	})
}

func (s *Service) latestMethod(ctx context.Context, invoice *domain.Invoice, integrationID uuid.UUID) (*domain.InvoicePaymentMethod, error) {
	if integrationID != uuid.Nil {
		method, err := s.invoices.FindPaymentMethod(ctx, nil, invoice.ID, integrationID)
		if err != nil {
			return nil, err
		}
		if method == nil {
			return nil, domain.ErrPaymentNotInitiated
		}
		return method, nil
	}

	if invoice.PaymentReference != nil && *invoice.PaymentReference != "" {
		method, err := s.invoices.FindPaymentMethodByReference(ctx, nil, *invoice.PaymentReference)
		if err != nil {
			return nil, err
		}
		if method != nil && method.InvoiceID == invoice.ID {
			return method, nil
		}
	}

	methods, err := s.invoices.ListPaymentMethods(ctx, nil, invoice.ID)
	if err != nil {
		return nil, err
	}
	var latest *domain.InvoicePaymentMethod
	for i := range methods {
		m := &methods[i]
		if !m.IsActive {
			continue
		}
		if latest == nil || m.UpdatedAt.After(latest.UpdatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, domain.ErrPaymentNotInitiated
	}
	return latest, nil
}

func (s *Service) invoiceFor(ctx context.Context, userID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoices.FindForUser(ctx, nil, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

// callbackURL is the webhook endpoint the provider should notify.
func (s *Service) callbackURL(integration *domain.PaymentIntegration) string {
	q := url.Values{}
	q.Set("provider", integration.Provider.String())
	q.Set("integration_id", integration.ID.String())
	return strings.TrimRight(s.publicBaseURL, "/") + "/webhooks/payments?" + q.Encode()
}

func verifiedEvent(provider domain.Provider, method *domain.InvoicePaymentMethod, res domain.VerifyPaymentResult) *domain.PaymentEvent {
	key := method.PaymentReference
	if method.CheckoutRequestID != "" {
		key = method.CheckoutRequestID
	}
	event := &domain.PaymentEvent{
		Provider:          provider,
		EventType:         "verify_payment",
		Successful:        true,
		ReferenceKey:      key,
		Currency:          res.Currency,
		Channel:           res.PaymentMethod,
		ProviderReference: res.ProviderReference,
	}
	if res.Amount.IsPositive() {
		event.Amount = res.Amount
		event.HasAmount = true
	}
	if res.PaidAt != nil {
		event.PaidAt = res.PaidAt.UTC()
	}
	if raw, err := json.Marshal(res); err == nil {
		event.RawPayload = raw
	}
	return event
}
