package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEvent is the normalized form of a provider callback.
type PaymentEvent struct {
	Provider  Provider
	EventType string
	// Successful is false for recognized events that must not move money,
	// e.g. failed charges or unrelated event types.
	Successful bool
	// ReferenceKey is matched against invoices.payment_reference.
	ReferenceKey      string
	Amount            decimal.Decimal
	HasAmount         bool
	Currency          string
	PaidAt            time.Time
	Channel           string
	ProviderReference string
	Message           string
	Metadata          map[string]string
	RawPayload        []byte
	// OwnerID limits reconciliation to that user's invoices when set.
	OwnerID uuid.UUID
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
