package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunMigrations brings a postgres database to the latest embedded version
// and records it in schema_state, which the serve command checks at startup.
func RunMigrations(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	unlock, err := acquireAdvisoryLock(ctx, db)
	if err != nil {
		return err
	}
	defer unlock()

	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}

	migrator, err := newMigrator(db, log)
	if err != nil {
		return err
	}

	before, err := cleanVersion(migrator)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	after, err := cleanVersion(migrator)
	if err != nil {
		return err
	}
	if after != latest {
		return fmt.Errorf("schema at version %d after migrate, expected %d", after, latest)
	}

	log.Info("schema migrated",
		zap.Uint("from_version", before),
		zap.Uint("to_version", after),
		zap.String("checksum", checksum))
	return activateSchemaState(ctx, db, strconv.FormatUint(uint64(after), 10), checksum)
}

func newMigrator(db *sql.DB, log *zap.Logger) (*migrate.Migrate, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	migrator.Log = migrateLogger{log: log.Named("migrate")}
	return migrator, nil
}

// cleanVersion returns the applied version, zero for an empty database, and
// fails on a dirty one.
func cleanVersion(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}

// AutoMigrate creates the schema from the gorm models. It backs the sqlite
// driver, which the postgres migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	return conn.AutoMigrate(domain.Models()...)
}

// migrateLogger routes golang-migrate output through zap.
type migrateLogger struct {
	log *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l migrateLogger) Verbose() bool {
	return l.log.Core().Enabled(zap.DebugLevel)
}
