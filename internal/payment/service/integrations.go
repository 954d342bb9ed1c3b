package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/observability/logger"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/payment/registry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ConnectInput struct {
	Provider    string
	DisplayName string
	Credentials map[string]string
}

// ConnectIntegration validates, verifies and stores a provider connection.
// A failed live check still stores the integration as VerificationFailed so
// the user can fix and re-verify it.
func (s *Service) ConnectIntegration(ctx context.Context, userID uuid.UUID, in ConnectInput) (*domain.PaymentIntegration, error) {
	provider, err := domain.ParseProvider(in.Provider)
	if err != nil {
		return nil, err
	}
	cfg, ok := registry.GetProviderConfig(provider)
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	if err := cfg.ValidateCredentials(in.Credentials); err != nil {
		return nil, err
	}
	creds := cfg.KnownKeys(in.Credentials)

	adapter, err := s.connector.AdapterFor(provider, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s credentials rejected", domain.ErrInvalidConfig, provider)
	}
	verified := adapter.VerifyCredentials(ctx)
	s.metrics.ObserveProviderRequest(provider.String(), "verify_credentials", verified)

	id := uuid.New()
	sealed, err := s.connector.Seal(id, creds)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	integration := &domain.PaymentIntegration{
		ID:                  id,
		UserID:              userID,
		IntegrationType:     cfg.Type,
		Provider:            provider,
		DisplayName:         strings.TrimSpace(in.DisplayName),
		Credentials:         sealed,
		IsActive:            true,
		SupportedCurrencies: domain.StringList(cfg.Currencies),
		SupportedMethods:    domain.StringList(cfg.Methods),
		VerificationStatus:  domain.VerificationFailed,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if integration.DisplayName == "" {
		integration.DisplayName = cfg.Name
	}
	if verified {
		integration.VerificationStatus = domain.VerificationVerified
		integration.LastVerifiedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.integrations.CountByType(ctx, tx, userID, cfg.Type)
		if err != nil {
			return err
		}
		integration.IsDefault = count == 0
		return s.integrations.Create(ctx, tx, integration)
	})
	if err != nil {
		return nil, err
	}

	logger.With(ctx, s.log).Info("integration connected",
		zap.String("integration_id", integration.ID.String()),
		zap.String("provider", provider.String()),
		zap.Any("credentials", logger.MaskCredentials(creds)),
		zap.Bool("verified", verified),
		zap.Bool("default", integration.IsDefault))
	return integration, nil
}

func (s *Service) ListIntegrations(ctx context.Context, userID uuid.UUID) ([]domain.PaymentIntegration, error) {
	return s.integrations.ListByUser(ctx, nil, userID)
}

func (s *Service) GetIntegration(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentIntegration, error) {
	return s.integrationFor(ctx, nil, userID, id)
}

// SetDefault makes the integration the only default of its type.
func (s *Service) SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentIntegration, error) {
	var out *domain.PaymentIntegration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		integration, err := s.integrationFor(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !integration.IsActive {
			return domain.ErrIntegrationInactive
		}
		if err := s.integrations.ClearDefault(ctx, tx, userID, integration.IntegrationType); err != nil {
			return err
		}
		integration.IsDefault = true
		integration.UpdatedAt = s.clock.Now(ctx)
		out = integration
		return s.integrations.Update(ctx, tx, integration)
	})
	return out, err
}

// SetActive toggles an integration. Deactivating drops its default flag.
func (s *Service) SetActive(ctx context.Context, userID, id uuid.UUID, active bool) (*domain.PaymentIntegration, error) {
	integration, err := s.integrationFor(ctx, nil, userID, id)
	if err != nil {
		return nil, err
	}
	integration.IsActive = active
	if !active {
		integration.IsDefault = false
	}
	integration.UpdatedAt = s.clock.Now(ctx)
	if err := s.integrations.Update(ctx, nil, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

// VerifyIntegration re-runs the live credential check.
func (s *Service) VerifyIntegration(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentIntegration, error) {
	integration, err := s.integrationFor(ctx, nil, userID, id)
	if err != nil {
		return nil, err
	}

	verified := false
	adapter, err := s.connector.Adapter(integration)
	switch {
	case errors.Is(err, domain.ErrEncryptionKeyMissing):
		return nil, err
	case err == nil:
		verified = adapter.VerifyCredentials(ctx)
		s.metrics.ObserveProviderRequest(integration.Provider.String(), "verify_credentials", verified)
	default:
		logger.With(ctx, s.log).Warn("integration credentials unusable",
			zap.String("integration_id", id.String()),
			zap.Error(err))
	}

	now := s.clock.Now(ctx)
	integration.LastVerifiedAt = &now
	integration.UpdatedAt = now
	integration.VerificationStatus = domain.VerificationFailed
	if verified {
		integration.VerificationStatus = domain.VerificationVerified
	}
	if err := s.integrations.Update(ctx, nil, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

// DeleteIntegration removes the integration and deactivates the invoice
// payment methods that point at it. If it was the default, the oldest
// remaining active integration of the same type takes over.
func (s *Service) DeleteIntegration(ctx context.Context, userID, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		integration, err := s.integrationFor(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if _, err := s.invoices.DeactivatePaymentMethods(ctx, tx, id); err != nil {
			return err
		}
		if err := s.integrations.Delete(ctx, tx, id); err != nil {
			return err
		}
		if !integration.IsDefault {
			return nil
		}

		remaining, err := s.integrations.ListByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		for i := range remaining {
			next := &remaining[i]
			if next.IntegrationType != integration.IntegrationType || !next.IsActive {
				continue
			}
			next.IsDefault = true
			next.UpdatedAt = s.clock.Now(ctx)
			return s.integrations.Update(ctx, tx, next)
		}
		return nil
	})
}

func (s *Service) integrationFor(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.PaymentIntegration, error) {
	integration, err := s.integrations.FindForUser(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}
	if integration == nil {
		return nil, domain.ErrIntegrationNotFound
	}
	return integration, nil
}
