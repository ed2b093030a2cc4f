// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

// ConfigEmptyError indicates that a nil client configuration was passed to New.
type ConfigEmptyError struct{}

// ChannelNotCreatedError is returned when an operation needs a channel that has not been opened yet.
type ChannelNotCreatedError struct {
	Op string
}

// QueueNotAssertedError is returned when an operation needs the queue before it has been asserted.
type QueueNotAssertedError struct {
	Op string
}

// HandlerNotProvidedError is returned when a consumer is set up without a message handler.
type HandlerNotProvidedError struct{}

// ConsumerExistsError is returned when a second consumer would be registered on the client.
type ConsumerExistsError struct{}

// EmptyDeliveryError is reported when the transport hands over a delivery without an acknowledger.
type EmptyDeliveryError struct{}

// SubscriptionCancelledError is reported when the delivery stream ends without the client cancelling it.
type SubscriptionCancelledError struct {
	ConsumerTag string
}

// ClientDisposedError is returned by Initialize once Dispose has been called.
type ClientDisposedError struct{}

// ReconnectExhaustedError is reported when a bounded reconnection policy gives up.
type ReconnectExhaustedError struct{}

// Error implements the error interface for ConfigEmptyError.
func (ConfigEmptyError) Error() string {
	return "empty client config passed, unable to create"
}

func (e ChannelNotCreatedError) Error() string {
	return e.Op + " failed because channel is not created yet"
}

// Is matches any ChannelNotCreatedError regardless of the operation.
func (ChannelNotCreatedError) Is(target error) bool {
	_, ok := target.(ChannelNotCreatedError)
	return ok
}

func (e QueueNotAssertedError) Error() string {
	return e.Op + " failed because queue is not created yet"
}

// Is matches any QueueNotAssertedError regardless of the operation.
func (QueueNotAssertedError) Is(target error) bool {
	_, ok := target.(QueueNotAssertedError)
	return ok
}

func (HandlerNotProvidedError) Error() string {
	return "handler for incoming messages is not provided"
}

func (ConsumerExistsError) Error() string {
	return "consumer already set up"
}

func (EmptyDeliveryError) Error() string {
	return "message is empty"
}

func (e SubscriptionCancelledError) Error() string {
	return "subscription " + e.ConsumerTag + " was cancelled by the broker"
}

// Is matches any SubscriptionCancelledError regardless of the tag.
func (SubscriptionCancelledError) Is(target error) bool {
	_, ok := target.(SubscriptionCancelledError)
	return ok
}

func (ClientDisposedError) Error() string {
	return "client already disposed, unable to initialize"
}

func (ReconnectExhaustedError) Error() string {
	return "reconnection policy exhausted, giving up"
}

// MessageEmptyError is returned when a nil message is passed to SendMessage.
type MessageEmptyError struct{}

func (MessageEmptyError) Error() string {
	return "empty message passed, unable to send"
}
