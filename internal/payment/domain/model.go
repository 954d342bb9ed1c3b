package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// PaymentIntegration is a user's connection to one provider. Credentials hold
// the vault-sealed credential bag and are never serialized.
type PaymentIntegration struct {
	ID                  uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID              uuid.UUID          `json:"user_id" gorm:"type:uuid;not null;index"`
	IntegrationType     IntegrationType    `json:"integration_type" gorm:"type:text;not null"`
	Provider            Provider           `json:"provider" gorm:"type:text;not null"`
	DisplayName         string             `json:"display_name" gorm:"type:text;not null"`
	Credentials         []byte             `json:"-" gorm:"not null"`
	IsActive            bool               `json:"is_active" gorm:"not null;default:true"`
	IsDefault           bool               `json:"is_default" gorm:"not null;default:false"`
	SupportedCurrencies datatypes.JSON     `json:"supported_currencies" gorm:"type:jsonb"`
	SupportedMethods    datatypes.JSON     `json:"supported_methods" gorm:"type:jsonb"`
	VerificationStatus  VerificationStatus `json:"verification_status" gorm:"type:text;not null;default:pending"`
	LastVerifiedAt      *time.Time         `json:"last_verified_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time          `json:"updated_at" gorm:"not null"`
}

func (PaymentIntegration) TableName() string { return "payment_integrations" }

// StringList encodes a list column.
func StringList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return datatypes.JSON(raw)
}

// DecodeStringList decodes a list column, ignoring malformed content.
func DecodeStringList(raw datatypes.JSON) []string {
	var out []string
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice maps the columns of the invoices table this service reads or writes.
type Invoice struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	InvoiceNumber    string          `json:"invoice_number" gorm:"type:text;not null"`
	ClientName       string          `json:"client_name" gorm:"type:text"`
	ClientEmail      string          `json:"client_email" gorm:"type:text"`
	ClientPhone      string          `json:"client_phone" gorm:"type:text"`
	Total            decimal.Decimal `json:"total" gorm:"type:numeric(14,2);not null"`
	Currency         string          `json:"currency" gorm:"type:text;not null"`
	Status           InvoiceStatus   `json:"status" gorm:"type:text;not null"`
	PaymentReference *string         `json:"payment_reference,omitempty" gorm:"type:text;index"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"not null"`
}

func (Invoice) TableName() string { return "invoices" }

// InvoicePaymentMethod links an invoice to an integration. Rows are only
// deactivated, never deleted.
type InvoicePaymentMethod struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	InvoiceID         uuid.UUID `json:"invoice_id" gorm:"type:uuid;not null;uniqueIndex:ux_invoice_payment_methods_pair"`
	IntegrationID     uuid.UUID `json:"integration_id" gorm:"type:uuid;not null;uniqueIndex:ux_invoice_payment_methods_pair;index"`
	Provider          Provider  `json:"provider" gorm:"type:text;not null"`
	PaymentLink       string    `json:"payment_link,omitempty" gorm:"type:text"`
	PaymentReference  string    `json:"payment_reference,omitempty" gorm:"type:text"`
	CheckoutRequestID string    `json:"checkout_request_id,omitempty" gorm:"type:text"`
	IsActive          bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt         time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"not null"`
}

func (InvoicePaymentMethod) TableName() string { return "invoice_payment_methods" }

// Payment is written exactly once per reconciled invoice.
type Payment struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	InvoiceID         uuid.UUID       `json:"invoice_id" gorm:"type:uuid;not null;index"`
	UserID            uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Currency          string          `json:"currency" gorm:"type:text"`
	Provider          Provider        `json:"provider" gorm:"type:text;not null"`
	ProviderReference string          `json:"provider_reference" gorm:"type:text"`
	PaymentMethod     string          `json:"payment_method" gorm:"type:text"`
	PaidAt            time.Time       `json:"paid_at" gorm:"not null"`
	Metadata          datatypes.JSON  `json:"metadata" gorm:"type:jsonb"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "PENDING"
	ReminderStatusSent      ReminderStatus = "SENT"
	ReminderStatusFailed    ReminderStatus = "FAILED"
	ReminderStatusCancelled ReminderStatus = "CANCELLED"
)

type Reminder struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	InvoiceID    uuid.UUID      `json:"invoice_id" gorm:"type:uuid;not null;index"`
	UserID       uuid.UUID      `json:"user_id" gorm:"type:uuid;not null"`
	Channel      string         `json:"channel" gorm:"type:text;not null"`
	Status       ReminderStatus `json:"status" gorm:"type:text;not null"`
	ScheduledFor time.Time      `json:"scheduled_for" gorm:"not null"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"not null"`
}

func (Reminder) TableName() string { return "reminders" }

type WebhookEventStatus string

const (
	WebhookStatusReceived  WebhookEventStatus = "received"
	WebhookStatusProcessed WebhookEventStatus = "processed"
	WebhookStatusIgnored   WebhookEventStatus = "ignored"
	WebhookStatusDuplicate WebhookEventStatus = "duplicate"
	WebhookStatusNotFound  WebhookEventStatus = "not_found"
	WebhookStatusFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is the audit log of inbound provider callbacks.
type WebhookEvent struct {
	ID             snowflake.ID       `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider       Provider           `json:"provider" gorm:"type:text;not null;index"`
	IntegrationID  *uuid.UUID         `json:"integration_id,omitempty" gorm:"type:uuid"`
	EventType      string             `json:"event_type" gorm:"type:text"`
	ReferenceKey   string             `json:"reference_key" gorm:"type:text;index"`
	Payload        datatypes.JSON     `json:"payload" gorm:"type:jsonb"`
	SignatureValid *bool              `json:"signature_valid,omitempty"`
	Status         WebhookEventStatus `json:"status" gorm:"type:text;not null"`
	Error          string             `json:"error,omitempty" gorm:"type:text"`
	ReceivedAt     time.Time          `json:"received_at" gorm:"not null;index"`
	ProcessedAt    *time.Time         `json:"processed_at,omitempty"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// Models lists every table owned by this service, in dependency order.
func Models() []any {
	return []any{
		&PaymentIntegration{},
		&Invoice{},
		&InvoicePaymentMethod{},
		&Payment{},
		&Reminder{},
		&WebhookEvent{},
	}
}
