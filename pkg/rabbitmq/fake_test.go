package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type published struct {
	Exchange   string
	RoutingKey string
	Msg        amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	closed     bool
	publishErr error
	declareErr error
	exchanges  []string
	queues     []string
	bindings   []Binding
	published  []published
	closeCalls int
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declareErr != nil {
		return f.declareErr
	}
	f.exchanges = append(f.exchanges, name)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings = append(f.bindings, Binding{Queue: name, RoutingKey: key})
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{Exchange: exchange, RoutingKey: key, Msg: msg})
	return nil
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if f.deliveries == nil {
		f.deliveries = make(chan amqp.Delivery)
	}
	return f.deliveries, nil
}

func (f *fakeChannel) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
	return nil
}

func (f *fakeChannel) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeConn struct {
	mu         sync.Mutex
	closed     bool
	channel    *fakeChannel
	channelErr error
	closeCalls int
}

func (f *fakeConn) OpenChannel() (Channel, error) {
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return f.channel, nil
}

func (f *fakeConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
	return nil
}

// fakeBroker hands out connections and can be told to refuse dials.
type fakeBroker struct {
	mu        sync.Mutex
	failDials int // number of dials to fail before succeeding; -1 fails forever
	dials     int
	conns     []*fakeConn
	newChan   func() *fakeChannel
	dialDelay time.Duration // stalls every dial without watching ctx
}

var errRefused = errors.New("connection refused")

func (b *fakeBroker) Dial(_ context.Context, url string) (Conn, error) {
	b.mu.Lock()
	b.dials++
	n := b.dials
	b.mu.Unlock()
	if b.dialDelay > 0 {
		time.Sleep(b.dialDelay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDials < 0 || n <= b.failDials {
		return nil, errRefused
	}
	ch := &fakeChannel{}
	if b.newChan != nil {
		ch = b.newChan()
	}
	c := &fakeConn{channel: ch}
	b.conns = append(b.conns, c)
	return c, nil
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}
