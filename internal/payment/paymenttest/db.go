// Package paymenttest holds sqlite fixtures shared by the payment tests.
package paymenttest

import (
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/security/vault"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an isolated in-memory database with the payment schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(domain.Models()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type InvoiceOption func(*domain.Invoice)

func WithReference(ref string) InvoiceOption {
	return func(inv *domain.Invoice) { inv.PaymentReference = &ref }
}

func WithStatus(status domain.InvoiceStatus) InvoiceOption {
	return func(inv *domain.Invoice) { inv.Status = status }
}

func WithTotal(total string, currency string) InvoiceOption {
	return func(inv *domain.Invoice) {
		inv.Total = decimal.RequireFromString(total)
		inv.Currency = currency
	}
}

func WithUser(userID uuid.UUID) InvoiceOption {
	return func(inv *domain.Invoice) { inv.UserID = userID }
}

// SeedInvoice inserts a SENT invoice of 5000 KES unless options say otherwise.
func SeedInvoice(t *testing.T, db *gorm.DB, opts ...InvoiceOption) *domain.Invoice {
	t.Helper()
	now := time.Now().UTC()
	inv := &domain.Invoice{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		InvoiceNumber: "INV-" + uuid.NewString()[:8],
		ClientName:    "Acme Ltd",
		ClientEmail:   "billing@acme.test",
		ClientPhone:   "0712345678",
		Total:         decimal.NewFromInt(5000),
		Currency:      "KES",
		Status:        domain.InvoiceStatusSent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	require.NoError(t, db.Create(inv).Error)
	return inv
}

// SeedReminder inserts a reminder in the given status.
func SeedReminder(t *testing.T, db *gorm.DB, invoice *domain.Invoice, status domain.ReminderStatus) *domain.Reminder {
	t.Helper()
	now := time.Now().UTC()
	r := &domain.Reminder{
		ID:           uuid.New(),
		InvoiceID:    invoice.ID,
		UserID:       invoice.UserID,
		Channel:      "email",
		Status:       status,
		ScheduledFor: now.Add(24 * time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

// ReminderStatus reloads a reminder's status.
func ReminderStatus(t *testing.T, db *gorm.DB, id uuid.UUID) domain.ReminderStatus {
	t.Helper()
	var r domain.Reminder
	require.NoError(t, db.Where("id = ?", id).First(&r).Error)
	return r.Status
}

// CountPayments counts payment rows for an invoice.
func CountPayments(t *testing.T, db *gorm.DB, invoiceID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Payment{}).Where("invoice_id = ?", invoiceID).Count(&n).Error)
	return n
}

// ReloadInvoice reads an invoice back from the database.
func ReloadInvoice(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.Invoice {
	t.Helper()
	var inv domain.Invoice
	require.NoError(t, db.Where("id = ?", id).First(&inv).Error)
	return &inv
}

// NewVault returns an AES vault with a fixed test key.
func NewVault(t *testing.T) vault.Provider {
	t.Helper()
	v, err := vault.NewFactory(vault.Config{Provider: "aes", AESKey: "chapchap-test-key"})
	require.NoError(t, err)
	return v
}

// SeedIntegration stores an active, verified integration with sealed credentials.
func SeedIntegration(t *testing.T, db *gorm.DB, v vault.Provider, userID uuid.UUID, provider domain.Provider, creds map[string]string) *domain.PaymentIntegration {
	t.Helper()
	id := uuid.New()
	sealed, err := vault.SealCredentials(v, id, creds)
	require.NoError(t, err)
	now := time.Now().UTC()
	in := &domain.PaymentIntegration{
		ID:                  id,
		UserID:              userID,
		IntegrationType:     provider.Type(),
		Provider:            provider,
		DisplayName:         provider.String(),
		Credentials:         sealed,
		IsActive:            true,
		IsDefault:           true,
		SupportedCurrencies: domain.StringList([]string{"KES"}),
		SupportedMethods:    domain.StringList(nil),
		VerificationStatus:  domain.VerificationVerified,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, db.Create(in).Error)
	return in
}
