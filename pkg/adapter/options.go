// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MessageHandler processes one delivery. Acknowledging it through the delivery
// or the channel is the handler's responsibility.
type MessageHandler func(ctx context.Context, delivery amqp091.Delivery, ch Channel) error

// QueuePreparationHandler customizes topology (bindings, exchanges) before consumption starts.
type QueuePreparationHandler func(ctx context.Context, queue amqp091.Queue, ch Channel) error

// BackoffFactory builds a fresh reconnection policy after every successful connection.
type BackoffFactory func(interval time.Duration) retry.Backoff

// Option configures a Client.
type Option func(*Client)

// WithHandler turns the client into a consumer of the configured queue.
func WithHandler(h MessageHandler) Option {
	return func(c *Client) {
		c.handler = h
	}
}

// WithQueuePreparation sets the hook invoked before the consumer is registered.
func WithQueuePreparation(h QueuePreparationHandler) Option {
	return func(c *Client) {
		c.prepare = h
	}
}

// WithLogger overrides the logger derived from ClientConfig.Logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the amqp091 dialer, mostly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dial = d
		}
	}
}

// WithMeterProvider sets where client metrics are recorded.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

// WithBackoff replaces the fixed-interval, never-ending reconnection policy.
func WithBackoff(f BackoffFactory) Option {
	return func(c *Client) {
		if f != nil {
			c.newBackoff = f
		}
	}
}

// ConstantBackoff retries forever at the configured interval.
func ConstantBackoff(interval time.Duration) retry.Backoff {
	return retry.NewConstant(interval)
}
