package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KeremAR/Microservice/pkg/metrics"
	"github.com/KeremAR/Microservice/pkg/middleware"
	"github.com/KeremAR/Microservice/pkg/models"
	"github.com/KeremAR/Microservice/pkg/retry"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errEncode = errors.New("encoding event")

// PublisherConfig controls delivery attempts.
type PublisherConfig struct {
	// URL is used for ephemeral connections when the shared one is down.
	URL         string
	MaxAttempts int
	RetryDelay  time.Duration
	// Timeout bounds a single attempt, including the ephemeral dial.
	Timeout time.Duration
	Dial    Dialer
}

func (c PublisherConfig) withDefaults() PublisherConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Dial == nil {
		c.Dial = DialAMQP
	}
	return c
}

// Publisher delivers events best-effort. The shared connection is used
// when live; otherwise each attempt opens and closes its own connection.
type Publisher struct {
	conn   *Connection
	cfg    PublisherConfig
	policy retry.Policy
	logger *slog.Logger
}

// NewPublisher creates a publisher over the shared connection. conn may be
// nil, in which case every publish goes through an ephemeral connection.
func NewPublisher(conn *Connection, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	cfg = cfg.withDefaults()
	if cfg.URL == "" && conn != nil {
		cfg.URL = conn.URL
	}
	logger = logger.With("component", "publisher")

	policy := retry.Fixed(cfg.MaxAttempts, cfg.RetryDelay)
	policy.Retryable = func(err error) bool { return !errors.Is(err, errEncode) }
	policy.OnRetry = func(attempt int, err error, next time.Duration) {
		logger.Warn("publish attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"retry_in", next,
			"error", err,
		)
	}

	return &Publisher{conn: conn, cfg: cfg, policy: policy, logger: logger}
}

// Publish sends event to routingKey. It never fails the caller: after the
// retry policy is exhausted the event is logged and dropped.
func (p *Publisher) Publish(ctx context.Context, event models.Event, routingKey string) {
	correlationID := middleware.CorrelationIDFromContext(ctx)
	// The business operation has already succeeded; a client hanging up
	// must not abort delivery.
	ctx = context.WithoutCancel(ctx)

	log := p.logger.With(
		"event_id", event.ID(),
		"event_type", event.Type(),
		"routing_key", routingKey,
		"correlation_id", correlationID,
	)

	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		metrics.PublishAttempts.Inc()
		return p.publishOnce(ctx, event, routingKey, correlationID)
	})
	if err != nil {
		metrics.EventsDropped.WithLabelValues(string(event.Type())).Inc()
		log.Error("event dropped after exhausting publish retries", "error", err)
		return
	}
	log.Info("event published")
}

func (p *Publisher) publishOnce(ctx context.Context, event models.Event, routingKey, correlationID string) error {
	body, err := event.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", errEncode, err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		MessageId:     event.ID(),
		Type:          string(event.Type()),
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if p.conn.IsLive() {
		if err := p.conn.publish(ctx, routingKey, msg); err != nil {
			return fmt.Errorf("shared channel: %w", err)
		}
		metrics.EventsPublished.WithLabelValues(routingKey, "shared").Inc()
		return nil
	}

	if err := p.publishEphemeral(ctx, routingKey, msg); err != nil {
		return fmt.Errorf("ephemeral connection: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(routingKey, "ephemeral").Inc()
	return nil
}

func (p *Publisher) publishEphemeral(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	conn, err := dialContext(ctx, p.cfg.Dial, p.cfg.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.OpenChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := DeclareExchange(ch); err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, msg)
}
