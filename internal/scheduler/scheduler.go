package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/clock"
	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Cfg    config.Config
	Clock  clock.Clock
	Events domain.WebhookEventRepository
}

// Scheduler runs periodic maintenance jobs in-process.
type Scheduler struct {
	log      *zap.Logger
	cfg      config.Config
	clock    clock.Clock
	events   domain.WebhookEventRepository
	interval time.Duration
}

func New(p Params) *Scheduler {
	interval := p.Cfg.WebhookPruneInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler"),
		cfg:      p.Cfg,
		clock:    p.Clock,
		events:   p.Events,
		interval: interval,
	}
}

// RunForever runs every job once, then on each tick until ctx is done.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runAll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	if _, err := s.PruneWebhookEventsJob(ctx); err != nil {
		s.log.Error("prune webhook events failed", zap.Error(err))
	}
}

type jobRun struct {
	id        string
	job       string
	startedAt time.Time
	processed atomic.Int64
}

func (r *jobRun) AddProcessed(n int64) {
	r.processed.Add(n)
}

func (s *Scheduler) startJob(ctx context.Context, job string) *jobRun {
	run := &jobRun{id: uuid.NewString(), job: job, startedAt: s.clock.Now(ctx)}
	s.log.Info("job started", zap.String("job", job), zap.String("run_id", run.id))
	return run
}

func (s *Scheduler) finishJob(ctx context.Context, run *jobRun, err error) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.id),
		zap.Int64("processed", run.processed.Load()),
		zap.Duration("duration", s.clock.Now(ctx).Sub(run.startedAt)),
	}
	if err != nil {
		s.log.Error("job failed", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("job finished", fields...)
}
