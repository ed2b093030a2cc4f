package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testInterval = 50 * time.Millisecond

var errRefused = errors.New("dial tcp: connection refused")

// callLog records transport calls across connections in order.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.entries...)
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	rejects []uint64
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.acks = append(a.acks, tag)

	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nacks = append(a.nacks, tag)

	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rejects = append(a.rejects, tag)

	return nil
}

func (a *fakeAcknowledger) counts() (acks, nacks, rejects int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.acks), len(a.nacks), len(a.rejects)
}

type publishCall struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	mu          sync.Mutex
	log         *callLog
	closed      bool
	notify      []chan *amqp091.Error
	deliveries  chan amqp091.Delivery
	streamDone  bool
	consumers   []string
	prefetch    int
	global      bool
	published   []publishCall
	declareErr  error
	declaredFor []string
}

func newFakeChannel(log *callLog) *fakeChannel {
	return &fakeChannel{log: log}
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	c.log.add("queue.declare")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.declaredFor = append(c.declaredFor, name)

	return amqp091.Queue{Name: name}, c.declareErr
}

func (c *fakeChannel) QueueBind(_, _, _ string, _ bool, _ amqp091.Table) error {
	c.log.add("queue.bind")

	return nil
}

func (c *fakeChannel) ExchangeDeclare(_, _ string, _, _, _, _ bool, _ amqp091.Table) error {
	c.log.add("exchange.declare")

	return nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, global bool) error {
	c.log.add("qos")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.prefetch, c.global = prefetchCount, global

	return nil
}

func (c *fakeChannel) Consume(_, consumer string, _, _, _, _ bool, _ amqp091.Table) (<-chan amqp091.Delivery, error) {
	c.log.add("consume")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, amqp091.ErrClosed
	}

	c.consumers = append(c.consumers, consumer)
	c.deliveries = make(chan amqp091.Delivery)
	c.streamDone = false

	return c.deliveries, nil
}

func (c *fakeChannel) Cancel(_ string, _ bool) error {
	c.log.add("cancel")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return amqp091.ErrClosed
	}

	c.endStream()

	return nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return amqp091.ErrClosed
	}

	c.published = append(c.published, publishCall{exchange: exchange, key: key, msg: msg})

	return nil
}

func (c *fakeChannel) NotifyClose(ch chan *amqp091.Error) chan *amqp091.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(ch)

		return ch
	}

	c.notify = append(c.notify, ch)

	return ch
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *fakeChannel) Close() error {
	c.log.add("channel.close")
	c.shutdown(nil)

	return nil
}

// fail closes the channel the way a broker-side channel exception does.
func (c *fakeChannel) fail(err *amqp091.Error) {
	c.shutdown(err)
}

// cancelByServer ends the delivery stream while the channel stays open.
func (c *fakeChannel) cancelByServer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endStream()
}

func (c *fakeChannel) shutdown(err *amqp091.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true

	for _, n := range c.notify {
		if err != nil {
			n <- err
		}

		close(n)
	}

	c.notify = nil
	c.endStream()
}

// endStream closes the delivery stream once. Callers hold mu.
func (c *fakeChannel) endStream() {
	if c.deliveries != nil && !c.streamDone {
		c.streamDone = true
		close(c.deliveries)
	}
}

// deliver hands d to the consumer loop, failing the test if nobody takes it.
func (c *fakeChannel) deliver(t *testing.T, d amqp091.Delivery) {
	t.Helper()

	c.mu.Lock()
	stream := c.deliveries
	c.mu.Unlock()

	require.NotNil(t, stream, "no consumer registered")

	select {
	case stream <- d:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was not taken by the consumer")
	}
}

func (c *fakeChannel) consumerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.consumers)
}

func (c *fakeChannel) publishes() []publishCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]publishCall(nil), c.published...)
}

type fakeConnection struct {
	mu         sync.Mutex
	log        *callLog
	closed     bool
	notify     []chan *amqp091.Error
	blocked    []chan amqp091.Blocking
	channel    *fakeChannel
	channelErr error
	live       atomic.Bool
}

func newFakeConnection(log *callLog) *fakeConnection {
	conn := &fakeConnection{log: log}
	conn.live.Store(true)

	return conn
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, amqp091.ErrClosed
	}

	if c.channelErr != nil {
		return nil, c.channelErr
	}

	c.channel = newFakeChannel(c.log)

	return c.channel, nil
}

func (c *fakeConnection) NotifyClose(ch chan *amqp091.Error) chan *amqp091.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notify = append(c.notify, ch)

	return ch
}

func (c *fakeConnection) NotifyBlocked(ch chan amqp091.Blocking) chan amqp091.Blocking {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocked = append(c.blocked, ch)

	return ch
}

func (c *fakeConnection) SentSinceLastCheck() bool {
	return c.live.Load()
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *fakeConnection) Close() error {
	c.log.add("connection.close")
	c.shutdown(nil)

	return nil
}

// fail drops the connection with err, taking its channel down too.
func (c *fakeConnection) fail(err *amqp091.Error) {
	c.shutdown(err)
}

func (c *fakeConnection) block(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.blocked {
		b <- amqp091.Blocking{Active: true, Reason: reason}
	}
}

func (c *fakeConnection) shutdown(err *amqp091.Error) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return
	}

	c.closed = true
	c.live.Store(false)
	ch := c.channel

	for _, n := range c.notify {
		if err != nil {
			n <- err
		}

		close(n)
	}

	for _, b := range c.blocked {
		close(b)
	}

	c.notify, c.blocked = nil, nil
	c.mu.Unlock()

	if ch != nil {
		ch.shutdown(err)
	}
}

func (c *fakeConnection) currentChannel() *fakeChannel {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.channel
}

// fakeBroker hands out fake connections, refusing the first failures dials.
type fakeBroker struct {
	mu       sync.Mutex
	log      *callLog
	failures int
	dials    []time.Time
	conns    []*fakeConnection
}

func newFakeBroker(failures int) *fakeBroker {
	return &fakeBroker{log: new(callLog), failures: failures}
}

func (b *fakeBroker) dial(_ string, _ amqp091.Config) (Connection, error) {
	b.log.add("dial")

	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials = append(b.dials, time.Now())

	if b.failures > 0 {
		b.failures--

		return nil, errRefused
	}

	conn := newFakeConnection(b.log)
	b.conns = append(b.conns, conn)

	return conn, nil
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.dials)
}

func (b *fakeBroker) dialTimes() []time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]time.Time(nil), b.dials...)
}

func (b *fakeBroker) connections() []*fakeConnection {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*fakeConnection(nil), b.conns...)
}

// last returns the newest connection, failing the test when none exists.
func (b *fakeBroker) last(t *testing.T) *fakeConnection {
	t.Helper()

	conns := b.connections()
	require.NotEmpty(t, conns, "no connection was established")

	return conns[len(conns)-1]
}

func testConfig() *ClientConfig {
	return &ClientConfig{
		Host:              "localhost:5672",
		QueueName:         "apartments",
		ReconnectInterval: testInterval,
	}
}

// newTestClient builds a Client on top of b and disposes it when the test ends.
func newTestClient(t *testing.T, b *fakeBroker, cfg *ClientConfig, opts ...Option) (*Client, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)

	if cfg == nil {
		cfg = testConfig()
	}

	opts = append([]Option{WithDialer(b.dial), WithLogger(zap.New(core))}, opts...)

	client, err := New(cfg, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = client.Dispose(ctx)
	})

	return client, logs
}

func testDelivery(ack amqp091.Acknowledger, tag uint64, body string) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		ContentType:  "application/json",
		Body:         []byte(body),
	}
}

var connectionForced = &amqp091.Error{Code: amqp091.ConnectionForced, Reason: "CONNECTION_FORCED", Server: true}

var channelError = &amqp091.Error{Code: amqp091.PreconditionFailed, Reason: "PRECONDITION_FAILED", Server: true}
