package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/migration"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

type schemaGate struct {
	db     *gorm.DB
	driver string
	log    *zap.Logger
}

func NewSchemaGate(db *gorm.DB, cfg config.Config, log *zap.Logger) (SchemaGate, error) {
	if db == nil {
		return nil, errors.New("schema gate requires database handle")
	}
	return &schemaGate{db: db, driver: cfg.Database.Driver, log: log.Named("bootstrap")}, nil
}

// MustBeActive refuses to start against a database the migrate command has
// not brought to the embedded schema version. Sqlite schemas come from the
// models at startup and carry no recorded state.
func (g *schemaGate) MustBeActive(ctx context.Context) error {
	if g.driver == "sqlite" {
		return nil
	}

	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	version, err := migration.ActiveSchemaVersion(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("schema gate: %w", err)
	}
	g.log.Info("schema active", zap.String("schema_version", version))
	return nil
}

// EnforceSchemaGate aborts fx startup when the gate fails.
func EnforceSchemaGate(lc fx.Lifecycle, gate SchemaGate) {
	lc.Append(fx.Hook{OnStart: gate.MustBeActive})
}
