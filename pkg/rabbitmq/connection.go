package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KeremAR/Microservice/pkg/retry"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrConnectionExhausted is returned by Connect when every dial failed.
	ErrConnectionExhausted = errors.New("rabbitmq connection attempts exhausted")
	// ErrNotLive is returned when the shared handle is closed or half-dead.
	ErrNotLive = errors.New("rabbitmq connection is not live")
)

// Channel is the subset of *amqp.Channel this package uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

// Conn is the subset of *amqp.Connection this package uses.
type Conn interface {
	OpenChannel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a broker connection. It should give up once ctx is done;
// dialContext enforces that for dialers that do not.
type Dialer func(ctx context.Context, url string) (Conn, error)

// defaultDialTimeout applies when the dial context carries no deadline.
const defaultDialTimeout = 30 * time.Second

type amqpConn struct {
	*amqp.Connection
}

func (c amqpConn) OpenChannel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// DialAMQP is the production Dialer. The TCP connect and the AMQP handshake
// are bounded by the context deadline.
func DialAMQP(ctx context.Context, url string) (Conn, error) {
	timeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// dialContext returns as soon as either dial or ctx finishes. A connection
// that arrives after ctx ended is closed.
func dialContext(ctx context.Context, dial Dialer, url string) (Conn, error) {
	type result struct {
		conn Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := dial(ctx, url)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// ConnectionConfig controls how the shared connection is established.
type ConnectionConfig struct {
	URL         string
	MaxAttempts int
	RetryDelay  time.Duration
	Dial        Dialer
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.Dial == nil {
		c.Dial = DialAMQP
	}
	return c
}

// Connection owns the process-wide connection, its publishing channel and
// the declared topology. Fields are set once by Connect and never swapped.
type Connection struct {
	URL  string
	dial Dialer

	conn    Conn
	channel Channel

	// pubMu serialises writers on the shared channel.
	pubMu  sync.Mutex
	closed atomic.Bool
	logger *slog.Logger
}

// Connect establishes the shared connection with retries and declares the
// topology once. Exhausting the retries is fatal for callers that need
// messaging at boot.
func Connect(ctx context.Context, cfg ConnectionConfig, logger *slog.Logger) (*Connection, error) {
	cfg = cfg.withDefaults()
	logger = logger.With("component", "rabbitmq")

	policy := retry.Fixed(cfg.MaxAttempts, cfg.RetryDelay)
	policy.OnRetry = func(attempt int, err error, next time.Duration) {
		logger.Warn("failed to connect to RabbitMQ, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"retry_in", next,
			"error", err,
		)
	}

	c, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*Connection, error) {
		return open(ctx, cfg, logger)
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrConnectionExhausted, exhausted.Attempts, exhausted.Err)
		}
		return nil, err
	}

	logger.Info("connected to RabbitMQ", "exchange", ExchangeName)
	return c, nil
}

func open(ctx context.Context, cfg ConnectionConfig, logger *slog.Logger) (*Connection, error) {
	conn, err := dialContext(ctx, cfg.Dial, cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.OpenChannel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := DeclareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declaring topology: %w", err)
	}

	return &Connection{
		URL:     cfg.URL,
		dial:    cfg.Dial,
		conn:    conn,
		channel: ch,
		logger:  logger,
	}, nil
}

// IsLive reports whether the shared handle can be used. It never blocks.
func (c *Connection) IsLive() bool {
	if c == nil || c.closed.Load() || c.conn == nil || c.channel == nil {
		return false
	}
	return !c.conn.IsClosed() && !c.channel.IsClosed()
}

// Channel opens a new channel on the shared connection, e.g. for consumers.
func (c *Connection) Channel() (Channel, error) {
	if !c.IsLive() {
		return nil, ErrNotLive
	}
	return c.conn.OpenChannel()
}

// publish sends msg on the shared channel. Liveness is checked again after
// taking the writer lock because the handle may have died in between.
func (c *Connection) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	if !c.IsLive() {
		return ErrNotLive
	}
	return c.channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, msg)
}

// Close releases the connection. It is idempotent and safe on a nil or
// never-connected Connection.
func (c *Connection) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		errs = append(errs, c.channel.Close())
	}
	if c.conn != nil && !c.conn.IsClosed() {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}
