// Package audit records every user event from user_queue into
// user_event_log.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/KeremAR/Microservice/pkg/models"
	"github.com/KeremAR/Microservice/pkg/postgres"

	amqp "github.com/rabbitmq/amqp091-go"
)

const consumerName = "audit"

// Consumer handles user events for the audit log.
type Consumer struct {
	DB      *sql.DB
	Timeout time.Duration
	logger  *slog.Logger
}

// NewConsumer creates a new audit consumer.
func NewConsumer(db *sql.DB, logger *slog.Logger) *Consumer {
	return &Consumer{DB: db, Timeout: 5 * time.Second, logger: logger.With("component", consumerName)}
}

// HandleMessage records one delivery. A nil return acks it.
func (c *Consumer) HandleMessage(delivery amqp.Delivery) error {
	event, err := models.DecodeEvent(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode event", "error", err, "correlation_id", delivery.CorrelationId)
		return err
	}
	base, _ := models.Base(event)

	log := c.logger.With("event_id", base.EventID, "event_type", base.EventType, "correlation_id", delivery.CorrelationId)
	log.Info("processing event", "user_id", base.UserID)

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	seen, err := postgres.AlreadyProcessed(ctx, c.DB, consumerName, base.EventID)
	if err != nil {
		log.Error("error checking idempotency", "error", err)
		return err
	}
	if seen {
		log.Info("duplicate event ignored")
		return nil
	}

	_, err = c.DB.ExecContext(ctx,
		`INSERT INTO user_event_log (event_id, correlation_id, event_type, user_id, email, occurred_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (event_id) DO NOTHING`,
		base.EventID, delivery.CorrelationId, string(base.EventType),
		base.UserID, base.Email, base.Timestamp, string(delivery.Body),
	)
	if err != nil {
		log.Error("error writing event log", "error", err)
		return fmt.Errorf("writing event log: %w", err)
	}

	if err := postgres.MarkProcessed(ctx, c.DB, consumerName, base.EventID); err != nil {
		log.Warn("failed to record idempotency key", "error", err)
	}

	log.Info("event recorded", "email", base.Email)
	return nil
}
