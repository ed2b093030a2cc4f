// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"fmt"
	"maps"

	"github.com/GwynCerbin/scraper_rabbit/pkg/adapter"
	"github.com/GwynCerbin/scraper_rabbit/pkg/broker"
	"github.com/GwynCerbin/scraper_rabbit/pkg/contracts"
	"github.com/GwynCerbin/scraper_rabbit/pkg/infra"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Listener encapsulates common parameters of a scraper queue subscriber.
//
// Listener itself does not process messages; it acts as a factory that
// creates an Instance where the real work happens.
type Listener struct {
	cfg     *adapter.ClientConfig
	logger  *zap.Logger
	prepare adapter.QueuePreparationHandler
	opts    []adapter.Option
}

// NewListener constructs a Listener for the queue described by cfg.
func NewListener(cfg *adapter.ClientConfig) *Listener {
	return &Listener{
		cfg: cfg,
	}
}

// SetLogger overrides the logger derived from the client configuration.
// Pass nil to restore the default.
func (l *Listener) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// SetQueuePreparation sets the hook used to bind the queue before consumption starts.
func (l *Listener) SetQueuePreparation(h adapter.QueuePreparationHandler) {
	l.prepare = h
}

// SetClientOptions appends options passed to the underlying broker client.
func (l *Listener) SetClientOptions(opts ...adapter.Option) {
	l.opts = append(l.opts, opts...)
}

// Instance is a running listener created from Listener.
//   - client: the broker client, one message in flight at a time.
//   - router: map event type → route.
type Instance struct {
	client *adapter.Client
	router infra.Router
	logger *zap.Logger
}

// Init takes a Router snapshot and returns a ready‑to‑run Instance.
// To start with another router, create a new Instance instead of mutating the old one.
func (l *Listener) Init(router infra.Router) (*Instance, error) {
	if len(router) == 0 {
		return nil, infra.EmptyRoutError{}
	}

	logger := l.logger
	if logger == nil {
		logger = zap.NewNop()
		if l.cfg != nil && l.cfg.Logging {
			logger = zap.Must(zap.NewProduction())
		}
	}

	inst := &Instance{
		router: maps.Clone(router),
		logger: logger,
	}

	opts := []adapter.Option{
		adapter.WithLogger(logger),
		adapter.WithHandler(inst.handle),
	}

	if l.prepare != nil {
		opts = append(opts, adapter.WithQueuePreparation(l.prepare))
	}

	client, err := adapter.New(l.cfg, append(opts, l.opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create broker client: %w", err)
	}

	inst.client = client

	return inst, nil
}

// handle decodes a delivery and dispatches it. Undecodable and unrouted
// deliveries are rejected, and so is a message left unsettled by a failed route.
func (l *Instance) handle(ctx context.Context, d amqp091.Delivery, _ adapter.Channel) error {
	event, err := contracts.Decode(d.Body)
	msg := adapter.NewMessage(d, event)

	if err != nil {
		l.reject(msg)

		return fmt.Errorf("decode delivery: %w", err)
	}

	if err = l.router.Dispatch(ctx, msg); err != nil {
		if !msg.Settled() {
			l.reject(msg)
		}

		return err
	}

	return nil
}

func (l *Instance) reject(msg broker.Message) {
	if err := msg.Reject(); err != nil {
		l.logger.Error("reject message", zap.Error(err))
	}
}

// ListenAndServe connects to the broker and consumes until ctx is done.
// Lost connections are recovered in the background. Only setup errors
// after the connection was opened are returned.
func (l *Instance) ListenAndServe(ctx context.Context) error {
	if err := l.client.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize broker client: %w", err)
	}

	<-ctx.Done()

	return nil
}

// Shutdown waits for the message in flight and closes the broker client.
// When ctx ends first the client is closed anyway and the context error is returned.
func (l *Instance) Shutdown(ctx context.Context) error {
	if err := l.client.Dispose(ctx); err != nil {
		return fmt.Errorf("%w: %w", infra.ConsumerCloseError{}, err)
	}

	return nil
}

// Publish sends a scraper message to the listener queue.
func (l *Instance) Publish(ctx context.Context, msg contracts.Message) error {
	return l.client.SendMessage(ctx, msg)
}

// Healthy reports the broker client health.
func (l *Instance) Healthy() bool {
	return l.client.HealthCheck()
}

// Client exposes the underlying broker client.
func (l *Instance) Client() broker.Client {
	return l.client
}
