package rabbitmq

import (
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig holds configuration for setting up a consumer.
type ConsumerConfig struct {
	QueueName    string
	ConsumerName string
	Prefetch     int
}

// MessageHandler is a function that processes a delivered message.
// Return nil to ack, return error to nack (message goes to the DLQ).
type MessageHandler func(delivery amqp.Delivery) error

// SetupConsumer declares the shared topology on a fresh channel and starts
// consuming cfg.QueueName. Deliveries are handled one at a time.
func SetupConsumer(conn *Connection, cfg ConsumerConfig, handler MessageHandler, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := DeclareTopology(ch); err != nil {
		return err
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		cfg.QueueName,
		cfg.ConsumerName,
		false, // auto-ack = false (manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	log := logger.With("consumer", cfg.ConsumerName, "queue", cfg.QueueName)
	go Drain(msgs, handler, log)

	log.Info("consumer started")
	return nil
}

// Drain acks or nacks every delivery from msgs until the channel closes.
func Drain(msgs <-chan amqp.Delivery, handler MessageHandler, logger *slog.Logger) {
	for msg := range msgs {
		logger.Debug("received message",
			"routing_key", msg.RoutingKey,
			"message_id", msg.MessageId,
			"correlation_id", msg.CorrelationId,
		)

		if err := handler(msg); err != nil {
			logger.Error("error processing message, sending to DLQ",
				"message_id", msg.MessageId,
				"correlation_id", msg.CorrelationId,
				"error", err,
			)
			_ = msg.Nack(false, false) // don't requeue
			continue
		}
		_ = msg.Ack(false)
	}
	logger.Warn("delivery channel closed")
}
