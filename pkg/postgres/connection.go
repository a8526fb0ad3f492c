package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/KeremAR/Microservice/pkg/retry"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

var connectPolicy = retry.Fixed(30, 2*time.Second)

// Connect opens a database/sql handle (lib/pq) with retries. Used by the
// event consumers.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	policy := connectPolicy
	policy.OnRetry = func(attempt int, err error, next time.Duration) {
		logger.Warn("failed to connect to PostgreSQL, retrying", "attempt", attempt, "retry_in", next, "error", err)
	}

	db, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, err
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	logger.Info("connected to PostgreSQL")
	return db, nil
}

// NewPool opens the pgx pool backing the profile store, with the same
// retry policy as Connect.
func NewPool(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	policy := connectPolicy
	policy.OnRetry = func(attempt int, err error, next time.Duration) {
		logger.Warn("failed to open PostgreSQL pool, retrying", "attempt", attempt, "retry_in", next, "error", err)
	}

	pool, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pinging postgres: %w", err)
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("PostgreSQL pool ready")
	return pool, nil
}
