// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const consumerTagPrefix = "scraper-"

// setUpConsumer registers the single consumer of st and starts the delivery loop.
func (c *Client) setUpConsumer(ctx context.Context, st *connState) error {
	if c.handler == nil {
		return HandlerNotProvidedError{}
	}

	if st == nil || st.ch == nil {
		return ChannelNotCreatedError{Op: "consumer setup"}
	}

	if st.queue == nil {
		return QueueNotAssertedError{Op: "consumer setup"}
	}

	if st.consumerTag != "" {
		return ConsumerExistsError{}
	}

	if c.prepare != nil {
		if err := c.prepare(ctx, *st.queue, st.ch); err != nil {
			return fmt.Errorf("prepare queue: %w", err)
		}
	}

	// one unacknowledged message on the whole channel
	if err := st.ch.Qos(1, 0, true); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	c.logger.Debug("setting up a consumer")

	tag := consumerTagPrefix + uuid.NewString()

	deliveries, err := st.ch.Consume(setConsumerConfig(c.cfg.QueueName, tag))
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}

	st.consumerTag = tag
	st.consumerDone = make(chan struct{})

	go c.consume(st, tag, deliveries)

	c.logger.Info("consumer was set up", zap.String("consumer_tag", tag))

	return nil
}

// setConsumerConfig maps the queue and tag to the parameters expected by Channel.Consume.
//
//nolint:gocritic // returning multiple values is justified in this context
func setConsumerConfig(queue, tag string) (_, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) {
	return queue, tag, false, false, false, false, nil
}

// consume hands deliveries to the handler one by one until the stream ends.
func (c *Client) consume(st *connState, tag string, deliveries <-chan amqp091.Delivery) {
	defer close(st.consumerDone)

	for d := range deliveries {
		if d.Acknowledger == nil {
			c.logger.Error("error has occurred while receiving message", zap.Error(EmptyDeliveryError{}))

			continue
		}

		// Left unacknowledged: the broker requeues it when the channel closes.
		if !c.beginProcessing() {
			continue
		}

		c.handle(st.ch, d)
	}

	if st.closing.Load() || st.ch.IsClosed() {
		return
	}

	c.logger.Error("delivery stream closed", zap.Error(SubscriptionCancelledError{ConsumerTag: tag}))
	c.reconnect(false)
}

// beginProcessing raises the processing flag unless Dispose is draining.
func (c *Client) beginProcessing() bool {
	c.gate.Lock()
	defer c.gate.Unlock()

	if c.draining {
		return false
	}

	c.processing.Store(true)

	return true
}

func (c *Client) handle(ch Channel, d amqp091.Delivery) {
	defer c.processing.Store(false)

	err := c.invoke(ch, d)
	if err != nil {
		c.logger.Error("error has occurred while handling incoming message",
			zap.Error(err),
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.String("message_id", d.MessageId),
		)
	}

	c.metrics.recordDelivery(c.ctx, err != nil)
}

// invoke runs the handler and turns a panic into an error.
func (c *Client) invoke(ch Channel, d amqp091.Delivery) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("message handler panicked: %v", rvr)
		}
	}()

	return c.handler(c.ctx, d, ch)
}
