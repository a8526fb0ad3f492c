package postgres

import (
	"context"
	"database/sql"
)

// AlreadyProcessed reports whether consumer has recorded eventID.
func AlreadyProcessed(ctx context.Context, db *sql.DB, consumer, eventID string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM idempotency_keys WHERE consumer = $1 AND event_id = $2)",
		consumer, eventID,
	).Scan(&exists)
	return exists, err
}

// MarkProcessed records eventID for consumer. Recording twice is a no-op.
func MarkProcessed(ctx context.Context, db *sql.DB, consumer, eventID string) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO idempotency_keys (consumer, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		consumer, eventID,
	)
	return err
}
