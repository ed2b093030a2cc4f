// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package broker

import (
	"context"

	"github.com/GwynCerbin/scraper_rabbit/pkg/contracts"
)

// Publisher defines the outbound side of the broker client.
type Publisher interface {
	// SendMessage enqueues a scraper message for the configured queue.
	// It does not wait for a broker confirmation.
	SendMessage(context.Context, contracts.Message) error
}

// Client is the full lifecycle surface of a broker client.
type Client interface {
	Publisher

	// Initialize connects to the broker. Connection failures are retried in the
	// background and never returned; setup errors after the connection is open are.
	Initialize(context.Context) error

	// Dispose stops consumption, waits for the in-flight message and closes the
	// channel and connection. The client must not be reused afterwards.
	Dispose(context.Context) error

	// HealthCheck reports whether the client is connected and the transport is live.
	HealthCheck() bool
}

// Message represents a single broker-delivered scraper message, allowing inspection and acknowledgment.
// Implementations wrap the broker-specific delivery type.
type Message interface {
	// Headers returns the message metadata headers.
	Headers() map[string]interface{}

	// ContentType returns the MIME type of the message payload.
	ContentType() string

	// IsRedelivered signals if this delivery is a redelivery of a previous message.
	IsRedelivered() bool

	// Body returns the raw payload bytes.
	Body() []byte

	// Event returns the decoded scraper message.
	Event() contracts.Message

	// Ack acknowledges successful processing of the message.
	// It signals the broker to remove the message from the queue.
	Ack() error

	// Nack negatively acknowledges the message, requeuing it.
	// It signals a processing failure.
	Nack() error

	// Reject rejects the message without multiple-nack support.
	// It doesn't requeue the message.
	Reject() error

	// Settled reports whether Ack, Nack or Reject has already been called.
	Settled() bool
}
