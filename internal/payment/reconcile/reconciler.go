package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/clock"
	"github.com/payssd/chapchap-sub000/internal/observability/logger"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var Module = fx.Module("payment.reconcile",
	fx.Provide(New),
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Invoices domain.InvoiceRepository
	Clock    clock.Clock
}

// Service settles invoices from normalized payment events. The PAID transition,
// the payment row and reminder cancellation commit together or not at all.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	invoices domain.InvoiceRepository
	clock    clock.Clock
}

func New(p Params) domain.Reconciler {
	return NewService(p)
}

func NewService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:       p.DB,
		log:      log.Named("payment.reconcile"),
		invoices: p.Invoices,
		clock:    c,
	}
}

func (s *Service) Apply(ctx context.Context, event *domain.PaymentEvent) (domain.ReconcileResult, error) {
	if event == nil || strings.TrimSpace(event.ReferenceKey) == "" {
		return domain.ReconcileResult{}, domain.ErrInvalidEvent
	}
	if !event.Successful {
		return domain.ReconcileResult{Outcome: domain.OutcomeIgnored}, nil
	}

	ctx, span := otel.Tracer("chapchap/payment").Start(ctx, "reconcile.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.provider", event.Provider.String()),
		attribute.String("payment.reference", event.ReferenceKey),
	)

	var result domain.ReconcileResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.resolveInvoice(ctx, tx, event.ReferenceKey, event.OwnerID)
		if err != nil {
			return err
		}
		if invoice == nil {
			result.Outcome = domain.OutcomeNotFound
			return nil
		}
		result.InvoiceID = invoice.ID

		paidAt := event.PaidAt.UTC()
		if event.PaidAt.IsZero() {
			paidAt = s.clock.Now(ctx)
		}

		changed, err := s.invoices.MarkPaid(ctx, tx, invoice.ID, paidAt)
		if err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}
		if !changed {
			result.Outcome = domain.OutcomeAlreadyPaid
			return nil
		}

		payment := s.buildPayment(ctx, invoice, event, paidAt)
		if err := s.invoices.InsertPayment(ctx, tx, payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		result.PaymentID = payment.ID

		cancelled, err := s.invoices.CancelPendingReminders(ctx, tx, invoice.ID, paidAt)
		if err != nil {
			return fmt.Errorf("cancel reminders: %w", err)
		}
		result.CancelledReminders = cancelled
		result.Outcome = domain.OutcomeProcessed
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return domain.ReconcileResult{}, err
	}
	span.SetAttributes(attribute.String("payment.outcome", string(result.Outcome)))

	log := logger.With(ctx, s.log).With(
		zap.String("provider", event.Provider.String()),
		zap.String("reference", event.ReferenceKey),
		zap.String("outcome", string(result.Outcome)),
	)
	switch result.Outcome {
	case domain.OutcomeProcessed:
		log.Info("invoice settled",
			zap.String("invoice_id", result.InvoiceID.String()),
			zap.String("payment_id", result.PaymentID.String()),
			zap.Int64("cancelled_reminders", result.CancelledReminders))
	case domain.OutcomeNotFound:
		log.Warn("no invoice for payment reference")
	default:
		log.Info("payment already applied", zap.String("invoice_id", result.InvoiceID.String()))
	}
	return result, nil
}

// resolveInvoice matches the reference stored on the invoice first, then the
// per-integration payment methods, which also carry M-Pesa checkout ids. An
// owner other than uuid.Nil hides other users' invoices.
func (s *Service) resolveInvoice(ctx context.Context, tx *gorm.DB, reference string, owner uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoices.FindByPaymentReference(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		method, err := s.invoices.FindPaymentMethodByReference(ctx, tx, reference)
		if err != nil || method == nil {
			return nil, err
		}
		if invoice, err = s.invoices.FindByID(ctx, tx, method.InvoiceID); err != nil || invoice == nil {
			return nil, err
		}
	}
	if owner != uuid.Nil && invoice.UserID != owner {
		return nil, nil
	}
	return invoice, nil
}

func (s *Service) buildPayment(ctx context.Context, invoice *domain.Invoice, event *domain.PaymentEvent, paidAt time.Time) *domain.Payment {
	amount := invoice.Total
	if event.HasAmount {
		amount = event.Amount
		if !amount.Equal(invoice.Total) {
			logger.With(ctx, s.log).Warn("payment amount differs from invoice total",
				zap.String("invoice_id", invoice.ID.String()),
				zap.String("amount", amount.String()),
				zap.String("total", invoice.Total.String()))
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(event.Currency))
	if currency == "" {
		currency = invoice.Currency
	}
	method := event.Channel
	if method == "" {
		method = event.Provider.String()
	}

	return &domain.Payment{
		ID:                uuid.New(),
		InvoiceID:         invoice.ID,
		UserID:            invoice.UserID,
		Amount:            amount,
		Currency:          currency,
		Provider:          event.Provider,
		ProviderReference: event.ProviderReference,
		PaymentMethod:     method,
		PaidAt:            paidAt,
		Metadata:          paymentMetadata(event),
		CreatedAt:         s.clock.Now(ctx),
	}
}

type metadataDoc struct {
	EventType string            `json:"event_type,omitempty"`
	Reference string            `json:"reference"`
	Message   string            `json:"message,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
}

// paymentMetadata keeps the provider payload verbatim for audit.
func paymentMetadata(event *domain.PaymentEvent) datatypes.JSON {
	doc := metadataDoc{
		EventType: event.EventType,
		Reference: event.ReferenceKey,
		Message:   event.Message,
		Extra:     event.Metadata,
	}
	if len(event.RawPayload) > 0 && json.Valid(event.RawPayload) {
		doc.Payload = json.RawMessage(event.RawPayload)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return datatypes.JSON(`{}`)
	}
	return datatypes.JSON(raw)
}
