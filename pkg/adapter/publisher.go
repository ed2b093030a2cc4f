// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GwynCerbin/scraper_rabbit/pkg/contracts"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// SendMessage publishes message as JSON to the configured queue through the default exchange.
// The message expires after ClientConfig.MessageTTL when it is set.
func (c *Client) SendMessage(ctx context.Context, message contracts.Message) error {
	st := c.current()
	if st == nil || st.ch == nil {
		return ChannelNotCreatedError{Op: "send message"}
	}

	if st.queue == nil {
		return QueueNotAssertedError{Op: "send message"}
	}

	if message == nil {
		return MessageEmptyError{}
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", message.EventType(), err)
	}

	if err := st.ch.PublishWithContext(setPublisherConfig(ctx, &c.cfg, message.EventType(), data)); err != nil {
		return fmt.Errorf("publish %s message: %w", message.EventType(), err)
	}

	c.metrics.recordPublish(ctx, string(message.EventType()))

	return nil
}

// setPublisherConfig maps the client settings and payload into AMQP publish arguments.
//
//nolint:gocritic // returning multiple values is justified in this context
func setPublisherConfig(ctx context.Context, cfg *ClientConfig, eventType contracts.EventType, data []byte) (_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) {
	msg = amqp091.Publishing{
		ContentType: mimetype.Detect(data).String(),
		Body:        data,
		Type:        string(eventType),
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Expiration:  cfg.expiration(),
	}

	if cfg.Persistent {
		msg.DeliveryMode = amqp091.Persistent
	}

	return ctx, "", cfg.QueueName, false, false, msg
}
