package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"gorm.io/gorm"
)

type integrationRepo struct {
	db *gorm.DB
}

func NewIntegrationRepository(db *gorm.DB) domain.IntegrationRepository {
	return &integrationRepo{db: db}
}

func (r *integrationRepo) Create(ctx context.Context, db *gorm.DB, integration *domain.PaymentIntegration) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(integration).Error
}

func (r *integrationRepo) Update(ctx context.Context, db *gorm.DB, integration *domain.PaymentIntegration) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(integration).Error
}

// FindByID returns nil when the integration does not exist.
func (r *integrationRepo) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.PaymentIntegration, error) {
	if db == nil {
		db = r.db
	}
	var integration domain.PaymentIntegration
	if err := db.WithContext(ctx).Where("id = ?", id).First(&integration).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepo) FindForUser(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) (*domain.PaymentIntegration, error) {
	if db == nil {
		db = r.db
	}
	var integration domain.PaymentIntegration
	if err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&integration).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepo) ListByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]domain.PaymentIntegration, error) {
	if db == nil {
		db = r.db
	}
	var items []domain.PaymentIntegration
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("integration_type ASC, created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *integrationRepo) FindDefault(ctx context.Context, db *gorm.DB, userID uuid.UUID, integrationType domain.IntegrationType) (*domain.PaymentIntegration, error) {
	if db == nil {
		db = r.db
	}
	var integration domain.PaymentIntegration
	if err := db.WithContext(ctx).
		Where("user_id = ? AND integration_type = ? AND is_default = ? AND is_active = ?", userID, integrationType, true, true).
		First(&integration).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepo) CountByType(ctx context.Context, db *gorm.DB, userID uuid.UUID, integrationType domain.IntegrationType) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.PaymentIntegration{}).
		Where("user_id = ? AND integration_type = ?", userID, integrationType).
		Count(&count).Error
	return count, err
}

func (r *integrationRepo) ClearDefault(ctx context.Context, db *gorm.DB, userID uuid.UUID, integrationType domain.IntegrationType) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).
		Model(&domain.PaymentIntegration{}).
		Where("user_id = ? AND integration_type = ? AND is_default = ?", userID, integrationType, true).
		Update("is_default", false).Error
}

func (r *integrationRepo) Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.PaymentIntegration{}).Error
}
