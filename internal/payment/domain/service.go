package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// WebhookInput is one inbound callback delivery.
type WebhookInput struct {
	Provider      string
	IntegrationID string
	Payload       []byte
	Signature     string
}

type WebhookOutcome string

const (
	OutcomeProcessed   WebhookOutcome = "processed"
	OutcomeAlreadyPaid WebhookOutcome = "already_paid"
	OutcomeNotFound    WebhookOutcome = "invoice_not_found"
	OutcomeIgnored     WebhookOutcome = "ignored"
)

type WebhookResult struct {
	Provider Provider
	EventID  snowflake.ID
	Outcome  WebhookOutcome
}

// WebhookService verifies, normalizes and applies provider callbacks.
type WebhookService interface {
	Ingest(ctx context.Context, in WebhookInput) (*WebhookResult, error)
}

// ReconcileResult describes what applying an event did.
type ReconcileResult struct {
	Outcome   WebhookOutcome `json:"outcome"`
	InvoiceID uuid.UUID      `json:"invoice_id"`
	PaymentID uuid.UUID      `json:"payment_id"`
	// CancelledReminders counts reminders moved from PENDING to CANCELLED.
	CancelledReminders int64 `json:"cancelled_reminders"`
}

// Reconciler applies a successful payment event to the invoice store.
type Reconciler interface {
	Apply(ctx context.Context, event *PaymentEvent) (ReconcileResult, error)
}

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrProviderMismatch      = errors.New("provider_mismatch")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrInvalidConfig         = errors.New("invalid_config")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrInvalidPhone          = errors.New("invalid_phone")
	ErrMissingCredentials    = errors.New("missing_credentials")
	ErrInvalidIntegrationID  = errors.New("invalid_integration_id")
	ErrIntegrationNotFound   = errors.New("integration_not_found")
	ErrIntegrationInactive   = errors.New("integration_inactive")
	ErrInvoiceNotFound       = errors.New("invoice_not_found")
	ErrInvoiceAlreadyPaid    = errors.New("invoice_already_paid")
	ErrInvoiceNotPayable     = errors.New("invoice_not_payable")
	ErrPaymentNotInitiated   = errors.New("payment_not_initiated")
	ErrUnsupportedOperation  = errors.New("unsupported_operation")
	ErrProviderRequestFailed = errors.New("provider_request_failed")
	ErrEncryptionKeyMissing  = errors.New("encryption_key_missing")
)

// ProviderError carries a provider-reported failure. It unwraps to
// ErrProviderRequestFailed.
type ProviderError struct {
	Provider  Provider
	Operation string
	Message   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Operation, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderRequestFailed
}
