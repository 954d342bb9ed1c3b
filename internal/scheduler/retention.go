package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// PruneWebhookEventsJob deletes webhook log rows older than the retention
// window and reports how many were removed. Non-positive retention disables it.
func (s *Scheduler) PruneWebhookEventsJob(ctx context.Context) (deleted int64, err error) {
	run := s.startJob(ctx, "prune_webhook_events")
	defer func() { s.finishJob(ctx, run, err) }()

	retentionDays := s.cfg.WebhookRetentionDays
	if retentionDays <= 0 {
		s.log.Info("webhook retention disabled", zap.Int("days", retentionDays))
		return 0, nil
	}

	cutoff := s.clock.Now(ctx).AddDate(0, 0, -retentionDays)
	deleted, err = s.events.DeleteBefore(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}
	run.AddProcessed(deleted)
	s.log.Info("webhook events pruned", zap.Time("cutoff", cutoff), zap.Int64("deleted", deleted))
	return deleted, nil
}
