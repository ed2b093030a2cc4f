// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"github.com/GwynCerbin/scraper_rabbit/pkg/broker"
	"github.com/GwynCerbin/scraper_rabbit/pkg/contracts"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/atomic"
)

var _ broker.Message = (*Message)(nil)

// Message wraps an AMQP delivery together with its decoded scraper event.
// Only the first of Ack, Nack or Reject reaches the broker.
type Message struct {
	// deliver holds the original AMQP delivery metadata and payload.
	deliver amqp091.Delivery
	// event is the decoded payload, nil when decoding failed.
	event contracts.Message
	// completed flips once the delivery is settled.
	completed atomic.Bool
}

// NewMessage wraps delivery; event may be nil.
func NewMessage(delivery amqp091.Delivery, event contracts.Message) *Message {
	return &Message{
		deliver: delivery,
		event:   event,
	}
}

// Headers returns the message headers set on the AMQP delivery.
func (m *Message) Headers() map[string]interface{} {
	return m.deliver.Headers
}

// ContentType returns the MIME content type of the message payload.
func (m *Message) ContentType() string {
	return m.deliver.ContentType
}

// IsRedelivered indicates if the delivery is a redelivery of a previous message.
func (m *Message) IsRedelivered() bool {
	return m.deliver.Redelivered
}

// Body returns the raw message payload as a byte slice.
func (m *Message) Body() []byte {
	return m.deliver.Body
}

// Event returns the decoded scraper event.
func (m *Message) Event() contracts.Message {
	return m.event
}

// Ack acknowledges successful processing of the message.
func (m *Message) Ack() error {
	if !m.completed.CompareAndSwap(false, true) {
		return nil
	}

	return m.deliver.Ack(false)
}

// Nack negatively acknowledges the message and requeues it.
func (m *Message) Nack() error {
	if !m.completed.CompareAndSwap(false, true) {
		return nil
	}

	return m.deliver.Nack(false, true)
}

// Reject drops the message without requeueing it.
func (m *Message) Reject() error {
	if !m.completed.CompareAndSwap(false, true) {
		return nil
	}

	return m.deliver.Reject(false)
}

// Settled reports whether the delivery was acknowledged, nacked or rejected.
func (m *Message) Settled() bool {
	return m.completed.Load()
}
