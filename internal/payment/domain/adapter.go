package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAdapter is the uniform capability surface of a provider. None of the
// operations return Go errors: provider, transport and configuration failures
// are folded into the result values.
type PaymentAdapter interface {
	Provider() Provider

	// VerifyCredentials performs a read-only authenticated call.
	VerifyCredentials(ctx context.Context) bool
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) PaymentLinkResult
	InitiateMobilePayment(ctx context.Context, req MobilePaymentRequest) MobilePaymentResult
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) VerifyPaymentResult
	VerifyWebhookSignature(payload []byte, signature string) bool
	// SignsWebhooks reports whether VerifyWebhookSignature checks anything
	// for this integration. When false it accepts every callback.
	SignsWebhooks() bool
}

// AdapterFactory builds adapters for one provider. ParseWebhook needs no
// credentials, so callbacks can be decoded before an integration is resolved.
type AdapterFactory interface {
	Provider() Provider
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
	ParseWebhook(payload []byte) (*PaymentEvent, error)
}

type AdapterConfig struct {
	Provider    Provider
	Credentials map[string]string

	// BaseURL overrides the environment-selected API host.
	BaseURL            string
	HTTPTimeout        time.Duration
	ReadRetries        int
	TokenStore         TokenStore
	TokenRefreshMargin time.Duration
}

// Credential returns a trimmed credential value.
func (c AdapterConfig) Credential(key string) string {
	if c.Credentials == nil {
		return ""
	}
	return trimSpace(c.Credentials[key])
}

// TokenStore caches bearer tokens between adapter instances.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type PaymentLinkRequest struct {
	Amount        decimal.Decimal
	Currency      string
	Email         string
	CustomerName  string
	Phone         string
	Reference     string
	CallbackURL   string
	Description   string
	InvoiceNumber string
	Metadata      map[string]string
}

type PaymentLinkResult struct {
	Success     bool   `json:"success"`
	PaymentLink string `json:"payment_link,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Error       string `json:"error,omitempty"`
}

type MobilePaymentRequest struct {
	Amount           decimal.Decimal
	Currency         string
	Phone            string
	Email            string
	Reference        string
	AccountReference string
	Description      string
	CallbackURL      string
}

type MobilePaymentResult struct {
	Success           bool   `json:"success"`
	Reference         string `json:"reference,omitempty"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

type VerifyPaymentRequest struct {
	Reference         string
	CheckoutRequestID string
}

// PaymentStatus is the provider-neutral state of a polled transaction.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type VerifyPaymentResult struct {
	Success           bool            `json:"success"`
	Status            PaymentStatus   `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// FailedVerification is the result for a poll that could not establish state.
func FailedVerification(message string) VerifyPaymentResult {
	return VerifyPaymentResult{Status: PaymentStatusFailed, Error: message}
}
