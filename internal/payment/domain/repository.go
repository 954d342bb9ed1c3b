package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository methods take an optional *gorm.DB so callers can run them inside
// a transaction; nil means the repository's own handle. Find methods return
// nil, nil when no row matches.

type IntegrationRepository interface {
	Create(ctx context.Context, db *gorm.DB, integration *PaymentIntegration) error
	Update(ctx context.Context, db *gorm.DB, integration *PaymentIntegration) error
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*PaymentIntegration, error)
	FindForUser(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) (*PaymentIntegration, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]PaymentIntegration, error)
	// FindDefault returns the active default integration of a type.
	FindDefault(ctx context.Context, db *gorm.DB, userID uuid.UUID, integrationType IntegrationType) (*PaymentIntegration, error)
	CountByType(ctx context.Context, db *gorm.DB, userID uuid.UUID, integrationType IntegrationType) (int64, error)
	ClearDefault(ctx context.Context, db *gorm.DB, userID uuid.UUID, integrationType IntegrationType) error
	Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) error
}

type InvoiceRepository interface {
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Invoice, error)
	FindForUser(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) (*Invoice, error)
	FindByPaymentReference(ctx context.Context, db *gorm.DB, reference string) (*Invoice, error)
	SetPaymentReference(ctx context.Context, db *gorm.DB, id uuid.UUID, reference string) error
	// MarkPaid flips the invoice to PAID unless it already is. It reports
	// whether a row changed.
	MarkPaid(ctx context.Context, db *gorm.DB, id uuid.UUID, paidAt time.Time) (bool, error)
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	CountPayments(ctx context.Context, db *gorm.DB, invoiceID uuid.UUID) (int64, error)
	CancelPendingReminders(ctx context.Context, db *gorm.DB, invoiceID uuid.UUID, at time.Time) (int64, error)

	UpsertPaymentMethod(ctx context.Context, db *gorm.DB, method *InvoicePaymentMethod) error
	FindPaymentMethod(ctx context.Context, db *gorm.DB, invoiceID, integrationID uuid.UUID) (*InvoicePaymentMethod, error)
	// FindPaymentMethodByReference matches either the payment reference or
	// the provider checkout request id.
	FindPaymentMethodByReference(ctx context.Context, db *gorm.DB, reference string) (*InvoicePaymentMethod, error)
	ListPaymentMethods(ctx context.Context, db *gorm.DB, invoiceID uuid.UUID) ([]InvoicePaymentMethod, error)
	DeactivatePaymentMethods(ctx context.Context, db *gorm.DB, integrationID uuid.UUID) (int64, error)
}

type WebhookEventRepository interface {
	Insert(ctx context.Context, db *gorm.DB, event *WebhookEvent) error
	Finish(ctx context.Context, db *gorm.DB, id snowflake.ID, status WebhookEventStatus, errMsg string, at time.Time) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WebhookEvent, error)
	DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
