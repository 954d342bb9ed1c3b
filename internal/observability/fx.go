package observability

import (
	"context"

	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/observability/logger"
	"github.com/payssd/chapchap-sub000/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(metrics.New),
)

// NewLogger builds the root logger and installs it as the zap global.
func NewLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	log, err := logger.New(logger.Options{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
		Service:     cfg.AppName,
	})
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}
