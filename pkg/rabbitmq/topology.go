package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "user_exchange"
	ExchangeKind = "topic"

	UserQueue = "user_queue"
	LoadQueue = "load_queue"

	UserRoutingKey = "user"
	LoadRoutingKey = "load"
)

// Binding ties a durable queue to the exchange by routing key.
type Binding struct {
	Queue      string
	RoutingKey string
}

// Bindings is the fixed topology consumers rely on.
var Bindings = []Binding{
	{Queue: UserQueue, RoutingKey: UserRoutingKey},
	{Queue: LoadQueue, RoutingKey: LoadRoutingKey},
}

// DLQName returns the dead-letter queue paired with queue.
func DLQName(queue string) string {
	return queue + ".dlq"
}

// DeclareExchange declares the topic exchange (idempotent).
func DeclareExchange(ch Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		ExchangeKind,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareTopology declares the exchange, every queue with its DLQ, and the
// bindings. Every declaration is idempotent as long as arguments match, so
// the service and the consumers all go through this one function.
func DeclareTopology(ch Channel) error {
	if err := DeclareExchange(ch); err != nil {
		return err
	}

	for _, b := range Bindings {
		dlq := DLQName(b.Queue)
		if _, err := ch.QueueDeclare(
			dlq,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return err
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    "",  // default exchange
			"x-dead-letter-routing-key": dlq, // route to DLQ
		}
		if _, err := ch.QueueDeclare(
			b.Queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			args,
		); err != nil {
			return err
		}

		if err := ch.QueueBind(b.Queue, b.RoutingKey, ExchangeName, false, nil); err != nil {
			return err
		}
	}
	return nil
}
