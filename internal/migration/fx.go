package migration

import (
	"context"
	"time"

	"github.com/payssd/chapchap-sub000/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

const applyTimeout = 2 * time.Minute

// Apply migrates the configured database.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if cfg.Database.Driver == "sqlite" {
		log.Info("applying sqlite schema from models")
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()
	return RunMigrations(ctx, sqlDB, log)
}

// EnsureSqliteSchema builds the schema for sqlite deployments, which have no
// separate migrate step. Other drivers are left to the migrate command.
func EnsureSqliteSchema(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if cfg.Database.Driver != "sqlite" {
		return nil
	}
	return Apply(conn, cfg, log)
}
