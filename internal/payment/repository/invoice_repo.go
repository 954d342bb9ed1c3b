package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type invoiceRepo struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) domain.InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Invoice, error) {
	if db == nil {
		db = r.db
	}
	var invoice domain.Invoice
	if err := db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepo) FindForUser(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) (*domain.Invoice, error) {
	if db == nil {
		db = r.db
	}
	var invoice domain.Invoice
	if err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepo) FindByPaymentReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Invoice, error) {
	if db == nil {
		db = r.db
	}
	var invoice domain.Invoice
	if err := db.WithContext(ctx).
		Where("payment_reference = ?", reference).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepo) SetPaymentReference(ctx context.Context, db *gorm.DB, id uuid.UUID, reference string) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payment_reference": reference,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *invoiceRepo) MarkPaid(ctx context.Context, db *gorm.DB, id uuid.UUID, paidAt time.Time) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND status <> ?", id, domain.InvoiceStatusPaid).
		Updates(map[string]any{
			"status":     domain.InvoiceStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *invoiceRepo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(payment).Error
}

func (r *invoiceRepo) CountPayments(ctx context.Context, db *gorm.DB, invoiceID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("invoice_id = ?", invoiceID).
		Count(&count).Error
	return count, err
}

func (r *invoiceRepo) CancelPendingReminders(ctx context.Context, db *gorm.DB, invoiceID uuid.UUID, at time.Time) (int64, error) {
	if db == nil {
		db = r.db
	}
	res := db.WithContext(ctx).
		Model(&domain.Reminder{}).
		Where("invoice_id = ? AND status = ?", invoiceID, domain.ReminderStatusPending).
		Updates(map[string]any{
			"status":     domain.ReminderStatusCancelled,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

// UpsertPaymentMethod keeps one row per (invoice, integration); a second
// link or charge overwrites the previous one and reactivates it.
func (r *invoiceRepo) UpsertPaymentMethod(ctx context.Context, db *gorm.DB, method *domain.InvoicePaymentMethod) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "invoice_id"}, {Name: "integration_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"provider",
				"payment_link",
				"payment_reference",
				"checkout_request_id",
				"is_active",
				"updated_at",
			}),
		}).
		Create(method).Error
}

func (r *invoiceRepo) FindPaymentMethod(ctx context.Context, db *gorm.DB, invoiceID, integrationID uuid.UUID) (*domain.InvoicePaymentMethod, error) {
	if db == nil {
		db = r.db
	}
	var method domain.InvoicePaymentMethod
	if err := db.WithContext(ctx).
		Where("invoice_id = ? AND integration_id = ?", invoiceID, integrationID).
		First(&method).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &method, nil
}

func (r *invoiceRepo) FindPaymentMethodByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.InvoicePaymentMethod, error) {
	if db == nil {
		db = r.db
	}
	var method domain.InvoicePaymentMethod
	if err := db.WithContext(ctx).
		Where("payment_reference = ? OR checkout_request_id = ?", reference, reference).
		Order("updated_at DESC").
		First(&method).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &method, nil
}

func (r *invoiceRepo) ListPaymentMethods(ctx context.Context, db *gorm.DB, invoiceID uuid.UUID) ([]domain.InvoicePaymentMethod, error) {
	if db == nil {
		db = r.db
	}
	var items []domain.InvoicePaymentMethod
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *invoiceRepo) DeactivatePaymentMethods(ctx context.Context, db *gorm.DB, integrationID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	res := db.WithContext(ctx).
		Model(&domain.InvoicePaymentMethod{}).
		Where("integration_id = ? AND is_active = ?", integrationID, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
