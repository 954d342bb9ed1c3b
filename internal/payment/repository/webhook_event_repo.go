package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"gorm.io/gorm"
)

type webhookEventRepo struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) domain.WebhookEventRepository {
	return &webhookEventRepo{db: db}
}

func (r *webhookEventRepo) Insert(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(event).Error
}

func (r *webhookEventRepo) Finish(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.WebhookEventStatus, errMsg string, at time.Time) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"error":        errMsg,
			"processed_at": at,
		}).Error
}

func (r *webhookEventRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WebhookEvent, error) {
	if db == nil {
		db = r.db
	}
	var event domain.WebhookEvent
	if err := db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepo) DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		db = r.db
	}
	res := db.WithContext(ctx).
		Where("received_at < ?", cutoff).
		Delete(&domain.WebhookEvent{})
	return res.RowsAffected, res.Error
}
