package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// RunMigrations executes the bootstrap DDL for a consumer service.
func RunMigrations(db *sql.DB, service string) error {
	for i, m := range Migrations(service) {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d for %s: %w", i, service, err)
		}
	}
	return nil
}

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RunPoolMigrations executes the bootstrap DDL over a pgx pool.
func RunPoolMigrations(ctx context.Context, db Execer, service string) error {
	for i, m := range Migrations(service) {
		if _, err := db.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration %d for %s: %w", i, service, err)
		}
	}
	return nil
}

// idempotencyKeys is keyed per consumer: a login event is delivered to
// both queues with the same event id.
const idempotencyKeys = `CREATE TABLE IF NOT EXISTS idempotency_keys (
	consumer VARCHAR(32) NOT NULL,
	event_id VARCHAR(36) NOT NULL,
	processed_at TIMESTAMP NOT NULL DEFAULT NOW(),
	PRIMARY KEY (consumer, event_id)
)`

// Migrations returns the idempotent DDL statements for service.
func Migrations(service string) []string {
	switch service {
	case "audit":
		return []string{
			idempotencyKeys,
			`CREATE TABLE IF NOT EXISTS user_event_log (
				id SERIAL PRIMARY KEY,
				event_id VARCHAR(36) NOT NULL UNIQUE,
				correlation_id VARCHAR(64),
				event_type VARCHAR(50) NOT NULL,
				user_id VARCHAR(100) NOT NULL,
				email VARCHAR(255),
				occurred_at VARCHAR(64) NOT NULL,
				payload JSONB NOT NULL,
				recorded_at TIMESTAMP NOT NULL DEFAULT NOW()
			)`,
		}
	case "loadstats":
		return []string{
			idempotencyKeys,
			`CREATE TABLE IF NOT EXISTS login_metrics (
				id SERIAL PRIMARY KEY,
				metric_date DATE NOT NULL,
				event_type VARCHAR(50) NOT NULL,
				count INTEGER NOT NULL DEFAULT 0,
				UNIQUE(metric_date, event_type)
			)`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
				id VARCHAR(36) PRIMARY KEY,
				identity_id VARCHAR(100) NOT NULL UNIQUE,
				email VARCHAR(255) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				surname VARCHAR(255) NOT NULL DEFAULT '',
				role VARCHAR(16) NOT NULL DEFAULT 'user',
				phone_number VARCHAR(20),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				department_id BIGINT,
				provider VARCHAR(32),
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			)`,
		}
	}
}
