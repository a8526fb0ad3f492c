// Package loadstats aggregates daily login counts from load_queue.
package loadstats

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

const consumerName = "loadstats"

// Consumer handles load events.
type Consumer struct {
	DB      *sql.DB
	Timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewConsumer creates a new load stats consumer.
func NewConsumer(db *sql.DB, logger *slog.Logger) *Consumer {
	return &Consumer{
		DB:      db,
		Timeout: 5 * time.Second,
		logger:  logger.With("component", consumerName),
		now:     time.Now,
	}
}

// HandleMessage counts one delivery toward its day's total.
func (c *Consumer) HandleMessage(delivery amqp.Delivery) error {
	event, err := models.DecodeEvent(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode event", "error", err, "correlation_id", delivery.CorrelationId)
		return err
	}
	base, _ := models.Base(event)

	log := c.logger.With("event_id", base.EventID, "event_type", base.EventType, "correlation_id", delivery.CorrelationId)

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

	metricDate := c.metricDate(base.Timestamp)
	_, err = c.DB.ExecContext(ctx,
		`INSERT INTO login_metrics (metric_date, event_type, count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (metric_date, event_type)
		 DO UPDATE SET count = login_metrics.count + 1`,
		metricDate, string(base.EventType),
	)
	if err != nil {
		log.Error("error upserting metrics", "error", err)
		return fmt.Errorf("upserting login metrics: %w", err)
	}

	if err := postgres.MarkProcessed(ctx, c.DB, consumerName, base.EventID); err != nil {
		log.Warn("failed to record idempotency key", "error", err)
	}

	log.Info("metrics updated", "date", metricDate)
	return nil
}

// metricDate is the UTC day of the event, or of receipt when the event
// timestamp does not parse.
func (c *Consumer) metricDate(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t = c.now()
	}
	return t.UTC().Format("2006-01-02")
}
