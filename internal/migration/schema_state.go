package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const schemaStatusActive = "active"

// ErrSchemaNotActive means migrations have not completed against this database.
var ErrSchemaNotActive = errors.New("schema_not_active")

func activateSchemaState(ctx context.Context, db *sql.DB, schemaVersion string, checksum string) error {
	if db == nil {
		return errors.New("schema state requires database handle")
	}

	version := strings.TrimSpace(schemaVersion)
	if version == "" {
		return errors.New("schema version is required for schema state activation")
	}

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO schema_state (id, status, schema_version, checksum, activated_at, created_at)
		VALUES (TRUE, $1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    activated_at = EXCLUDED.activated_at
	`, schemaStatusActive, version, nullIfEmpty(checksum), now)
	if err != nil {
		return fmt.Errorf("activate schema state: %w", err)
	}
	return nil
}

// ActiveSchemaVersion returns the version recorded by the last successful
// migration run and fails with ErrSchemaNotActive when it is missing or stale.
func ActiveSchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	if db == nil {
		return "", errors.New("schema state requires database handle")
	}

	var status, version string
	err := db.QueryRowContext(ctx,
		`SELECT status, schema_version FROM schema_state WHERE id = TRUE`,
	).Scan(&status, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSchemaNotActive
	}
	if err != nil {
		return "", fmt.Errorf("read schema state: %w", err)
	}
	if status != schemaStatusActive {
		return "", ErrSchemaNotActive
	}

	latest, err := LatestMigrationVersion()
	if err != nil {
		return "", err
	}
	if version != fmt.Sprintf("%d", latest) {
		return "", fmt.Errorf("%w: database at %s, binary expects %d", ErrSchemaNotActive, version, latest)
	}
	return version, nil
}

func nullIfEmpty(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
