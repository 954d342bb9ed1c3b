package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// advisoryLockKey serializes migrate runs across replicas.
const advisoryLockKey int64 = 4_210_577_303

var errLockHeld = errors.New("another migrate run holds the advisory lock")

// acquireAdvisoryLock takes a session lock on a pinned connection; postgres
// releases it only from the session that took it.
func acquireAdvisoryLock(ctx context.Context, db *sql.DB) (func(), error) {
	if db == nil {
		return nil, errors.New("advisory lock requires database handle")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin lock connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		_ = conn.Close()
		return nil, errLockHeld
	}

	return func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryLockKey)
		_ = conn.Close()
	}, nil
}
