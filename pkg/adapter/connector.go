// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GwynCerbin/scraper_rabbit/pkg/broker"
	"github.com/GwynCerbin/scraper_rabbit/pkg/infra"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var _ broker.Client = (*Client)(nil)

// Client is a broker client bound to one durable queue. It keeps a connection and
// a channel alive, reconnecting at a fixed interval, publishes scraper messages and,
// when a handler is configured, consumes the queue one message at a time.
type Client struct {
	// cfg is the immutable client configuration.
	cfg ClientConfig
	// amqpCfg is the transport configuration derived from cfg.
	amqpCfg amqp091.Config
	// dial opens transport connections.
	dial Dialer
	// handler processes deliveries; nil means publish-only.
	handler MessageHandler
	// prepare customizes the queue topology before consumption.
	prepare QueuePreparationHandler
	logger  *zap.Logger
	// meterProvider and metrics record client counters.
	meterProvider metric.MeterProvider
	metrics       *metrics
	// newBackoff builds the reconnection policy.
	newBackoff BackoffFactory

	// initMute serializes Initialize and Dispose.
	initMute sync.Mutex
	// mute guards state, timer, backoff and disposed.
	mute     sync.Mutex
	state    *connState
	timer    *time.Timer
	backoff  retry.Backoff
	disposed bool

	// stopping is closed when Dispose starts.
	stopping chan struct{}

	// reconnecting is set while a reconnection is pending.
	reconnecting atomic.Bool
	// processing is set while a message handler runs.
	processing atomic.Bool

	// gate orders the start of a handler against the dispose drain.
	gate     sync.Mutex
	draining bool

	// ctx lives until Dispose and is handed to handlers and reconnection attempts.
	ctx    context.Context
	cancel context.CancelFunc
}

// connState is everything owned by one connection generation.
// It is replaced as a whole, never patched field by field once published.
type connState struct {
	conn         Connection
	ch           Channel
	queue        *amqp091.Queue
	listeners    *listeners
	consumerTag  string
	consumerDone chan struct{}
	// closing is set once the client itself tears the generation down.
	closing atomic.Bool
}

// New validates cfg and returns a Client. No connection is made until Initialize.
func New(cfg *ClientConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ConfigEmptyError{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:           *cfg,
		amqpCfg:       cfg.amqpConfig(),
		dial:          DialAMQP,
		meterProvider: otel.GetMeterProvider(),
		newBackoff:    ConstantBackoff,
		stopping:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = newLogger(cfg.Logging)
	}

	c.logger = c.logger.With(zap.String("queue", cfg.QueueName))

	m, err := newMetrics(c.meterProvider, cfg.QueueName)
	if err != nil {
		return nil, fmt.Errorf("init client metrics: %w", err)
	}

	c.metrics = m
	c.backoff = c.newBackoff(cfg.ReconnectInterval)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	mimetype.SetLimit(mimeReadLimit)

	return c, nil
}

func newLogger(enabled bool) *zap.Logger {
	if !enabled {
		return zap.NewNop()
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}

	return logger
}

// Initialize connects to the broker, opens the channel, asserts the queue and,
// if a handler is configured, starts consuming. It may be called repeatedly; every
// call replaces the previous connection generation.
//
// A failed dial is not returned: a reconnection is scheduled instead. Errors after
// the connection is open are returned, they point at configuration problems.
func (c *Client) Initialize(ctx context.Context) error {
	c.initMute.Lock()
	defer c.initMute.Unlock()

	c.mute.Lock()
	if c.disposed {
		c.mute.Unlock()

		return ClientDisposedError{}
	}

	c.stopTimer()
	c.mute.Unlock()

	c.logger.Info("connecting to broker", zap.String("endpoint", c.cfg.endpoint()))

	conn, err := c.dial(c.cfg.uri(), c.amqpCfg)
	if err != nil {
		c.logger.Warn("error has occurred while connecting to broker", zap.Error(err))
		c.reconnect(true)

		return nil
	}

	c.mute.Lock()
	if c.disposed {
		c.mute.Unlock()
		infra.SafeWait(c.logger, "error has occurred while closing broker's connection", conn.Close)

		return ClientDisposedError{}
	}

	prev := c.state
	c.state = nil
	c.backoff = c.newBackoff(c.cfg.ReconnectInterval)
	c.mute.Unlock()

	if prev != nil && !c.retire(prev) {
		// Dispose started while the stale handler ran and closes prev itself.
		c.mute.Lock()
		c.state = prev
		c.mute.Unlock()

		infra.SafeWait(c.logger, "error has occurred while closing broker's connection", conn.Close)

		return ClientDisposedError{}
	}

	// cleared before the watchers attach so a fault of the new connection is not coalesced away
	c.reconnecting.Store(false)
	c.processing.Store(false)

	st := &connState{
		conn:      conn,
		listeners: newListeners(c.logger),
	}

	st.listeners.watchConnection(conn, func(err error) {
		c.handleConnectionFaulted(st.listeners, err)
	})

	if err := c.open(ctx, st); err != nil {
		c.closeState(st)

		return err
	}

	// Published even when Dispose has started: it waits for initMute and closes st.
	c.mute.Lock()
	c.state = st
	disposed := c.disposed
	c.mute.Unlock()

	if disposed {
		return ClientDisposedError{}
	}

	c.logger.Info("connection with the broker was established")

	return nil
}

// open creates the channel, asserts the queue and sets up the consumer on st.
func (c *Client) open(ctx context.Context, st *connState) error {
	c.logger.Debug("initializing channel")

	ch, err := st.conn.Channel()
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}

	st.ch = ch
	st.listeners.watchChannel(ch,
		func(err error) { c.handleChannelFaulted(st.listeners, err) },
		func() { c.handleChannelClosed(st.listeners) },
	)

	c.logger.Debug("ensuring that queue exists")

	queue, err := ch.QueueDeclare(c.cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	st.queue = &queue

	if c.handler == nil {
		return nil
	}

	return c.setUpConsumer(ctx, st)
}

// reconnect schedules Initialize after the backoff delay. Without force it is a
// no-op while another reconnection is pending, which folds the duplicate
// notifications of a connection and its channel into one retry.
func (c *Client) reconnect(force bool) {
	c.mute.Lock()
	defer c.mute.Unlock()

	if c.disposed {
		return
	}

	if c.reconnecting.Load() && !force {
		c.logger.Info("reconnection will be skipped since there is ongoing one")

		return
	}

	c.reconnecting.Store(true)

	if c.state != nil {
		c.state.listeners.detach()
	}

	c.stopTimer()

	delay, stop := c.backoff.Next()
	if stop {
		c.logger.Error("broker is unreachable", zap.Error(ReconnectExhaustedError{}))

		return
	}

	c.metrics.recordReconnect(c.ctx)
	c.logger.Info("wait before reconnection", zap.Duration("interval", delay))

	c.timer = time.AfterFunc(delay, c.reinitialize)
}

// reinitialize is the body of the reconnection timer.
func (c *Client) reinitialize() {
	err := c.Initialize(c.ctx)
	if err == nil || errors.Is(err, ClientDisposedError{}) {
		return
	}

	c.logger.Error("error has occurred while reinitializing broker connection", zap.Error(err))
	c.reconnect(true)
}

// stopTimer cancels the pending reconnection. Callers hold mute.
func (c *Client) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) current() *connState {
	c.mute.Lock()
	defer c.mute.Unlock()

	return c.state
}

func (c *Client) handleConnectionFaulted(l *listeners, err error) {
	if !l.release() {
		return
	}

	c.logger.Warn("connection to broker was interrupted", zap.Error(err))
	c.reconnect(false)
}

func (c *Client) handleChannelFaulted(l *listeners, err error) {
	if !l.release() {
		return
	}

	c.logger.Warn("channel faulted", zap.Error(err))
	c.reconnect(false)
}

func (c *Client) handleChannelClosed(l *listeners) {
	if !l.release() {
		return
	}

	c.logger.Warn("the channel was unexpectedly closed")
	c.reconnect(false)
}

// HealthCheck reports true when no reconnection is pending and the transport
// wrote a frame within the current liveness window.
func (c *Client) HealthCheck() bool {
	if c.reconnecting.Load() {
		return false
	}

	st := c.current()
	if st == nil || st.conn == nil || st.ch == nil {
		return false
	}

	return st.conn.SentSinceLastCheck()
}

// Processing reports whether a message handler is running.
func (c *Client) Processing() bool {
	return c.processing.Load()
}

// Reconnecting reports whether a reconnection is pending.
func (c *Client) Reconnecting() bool {
	return c.reconnecting.Load()
}
