package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/clock"
	"github.com/payssd/chapchap-sub000/internal/observability/logger"
	"github.com/payssd/chapchap-sub000/internal/observability/metrics"
	"github.com/payssd/chapchap-sub000/internal/payment/connector"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Connector    *connector.Connector
	Reconciler   domain.Reconciler
	Integrations domain.IntegrationRepository
	Events       domain.WebhookEventRepository
	Node         *snowflake.Node
	Clock        clock.Clock
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	connector    *connector.Connector
	reconciler   domain.Reconciler
	integrations domain.IntegrationRepository
	events       domain.WebhookEventRepository
	node         *snowflake.Node
	clock        clock.Clock
	metrics      *metrics.Metrics
}

func NewService(p Params) domain.WebhookService {
	return &Service{
		log:          p.Log.Named("payment.webhook"),
		connector:    p.Connector,
		reconciler:   p.Reconciler,
		integrations: p.Integrations,
		events:       p.Events,
		node:         p.Node,
		clock:        p.Clock,
		metrics:      p.Metrics,
	}
}

// Ingest verifies, logs and applies one provider callback. Rejections before
// the signature gate write nothing.
func (s *Service) Ingest(ctx context.Context, in domain.WebhookInput) (*domain.WebhookResult, error) {
	ctx, span := otel.Tracer("chapchap/payment").Start(ctx, "webhook.ingest")
	defer span.End()

	provider, err := s.resolveProvider(in.Provider)
	if err != nil {
		s.metrics.ObserveWebhook("unknown", "rejected")
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.provider", provider.String()))
	log := logger.With(ctx, s.log).With(zap.String("provider", provider.String()))

	if !json.Valid(in.Payload) {
		s.metrics.ObserveWebhook(provider.String(), "invalid_payload")
		return nil, domain.ErrInvalidPayload
	}

	integration, signatureValid, err := s.verify(ctx, provider, in)
	if err != nil {
		s.metrics.ObserveWebhook(provider.String(), "rejected")
		span.SetStatus(codes.Error, err.Error())
		log.Warn("webhook rejected",
			zap.String("integration_id", in.IntegrationID),
			zap.Error(err))
		return nil, err
	}
	if signatureValid == nil {
		log.Warn("webhook accepted without signature verification",
			zap.String("integration_id", in.IntegrationID))
	}
	var integrationID *uuid.UUID
	if integration != nil {
		integrationID = &integration.ID
	}

	record := &domain.WebhookEvent{
		ID:             s.node.Generate(),
		Provider:       provider,
		IntegrationID:  integrationID,
		Payload:        datatypes.JSON(logger.MaskPayload(in.Payload)),
		SignatureValid: signatureValid,
		Status:         domain.WebhookStatusReceived,
		ReceivedAt:     s.clock.Now(ctx),
	}
	result := &domain.WebhookResult{Provider: provider, EventID: record.ID}

	event, parseErr := s.connector.Registry().ParseWebhook(provider, in.Payload)
	if parseErr == nil {
		record.EventType = event.EventType
		record.ReferenceKey = event.ReferenceKey
	} else {
		record.Status = domain.WebhookStatusFailed
		record.Error = parseErr.Error()
	}
	if err := s.events.Insert(ctx, nil, record); err != nil {
		return nil, fmt.Errorf("log webhook event: %w", err)
	}
	if parseErr != nil {
		s.metrics.ObserveWebhook(provider.String(), "invalid_payload")
		log.Warn("webhook payload not understood", zap.Error(parseErr))
		return nil, parseErr
	}

	log = log.With(
		zap.String("event_id", record.ID.String()),
		zap.String("event_type", event.EventType),
		zap.String("reference", event.ReferenceKey),
	)

	if !event.Successful {
		result.Outcome = domain.OutcomeIgnored
		s.finish(ctx, record.ID, domain.WebhookStatusIgnored, event.Message)
		s.metrics.ObserveWebhook(provider.String(), string(result.Outcome))
		log.Info("webhook event ignored", zap.String("message", event.Message))
		return result, nil
	}

	if integration != nil {
		event.OwnerID = integration.UserID
	}
	applied, err := s.reconciler.Apply(ctx, event)
	if err != nil {
		s.finish(ctx, record.ID, domain.WebhookStatusFailed, err.Error())
		s.metrics.ObserveWebhook(provider.String(), "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		log.Error("webhook reconciliation failed", zap.Error(err))
		return nil, err
	}

	result.Outcome = applied.Outcome
	s.finish(ctx, record.ID, statusFor(applied.Outcome), "")
	s.metrics.ObserveWebhook(provider.String(), string(applied.Outcome))
	span.SetAttributes(attribute.String("payment.outcome", string(applied.Outcome)))
	return result, nil
}

func (s *Service) resolveProvider(raw string) (domain.Provider, error) {
	provider, err := domain.ParseProvider(raw)
	if err != nil {
		return "", err
	}
	if !s.connector.Registry().ProviderExists(provider) {
		return "", domain.ErrProviderNotFound
	}
	return provider, nil
}

// verify checks the signature against the integration's credentials. A nil
// validity means nothing was checked: either no integration resolved, or the
// integration has no signing secret.
func (s *Service) verify(ctx context.Context, provider domain.Provider, in domain.WebhookInput) (*domain.PaymentIntegration, *bool, error) {
	raw := strings.TrimSpace(in.IntegrationID)
	if raw == "" {
		return nil, nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, nil, domain.ErrInvalidIntegrationID
	}

	integration, err := s.integrations.FindByID(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	if integration == nil {
		return nil, nil, nil
	}
	if integration.Provider != provider {
		return nil, nil, domain.ErrProviderMismatch
	}

	adapter, err := s.connector.Adapter(integration)
	if err != nil {
		if errors.Is(err, domain.ErrEncryptionKeyMissing) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("integration %s: %w", id, err)
	}
	if !adapter.VerifyWebhookSignature(in.Payload, in.Signature) {
		return nil, nil, domain.ErrInvalidSignature
	}
	if !adapter.SignsWebhooks() {
		return integration, nil, nil
	}
	valid := true
	return integration, &valid, nil
}

func (s *Service) finish(ctx context.Context, id snowflake.ID, status domain.WebhookEventStatus, message string) {
	if err := s.events.Finish(ctx, nil, id, status, message, s.clock.Now(ctx)); err != nil {
		logger.With(ctx, s.log).Error("failed to update webhook event",
			zap.String("event_id", id.String()),
			zap.Error(err))
	}
}

func statusFor(outcome domain.WebhookOutcome) domain.WebhookEventStatus {
	switch outcome {
	case domain.OutcomeProcessed:
		return domain.WebhookStatusProcessed
	case domain.OutcomeAlreadyPaid:
		return domain.WebhookStatusDuplicate
	case domain.OutcomeNotFound:
		return domain.WebhookStatusNotFound
	default:
		return domain.WebhookStatusIgnored
	}
}
