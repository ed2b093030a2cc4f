// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// ExchangeDeclare describes an exchange to bind the client queue to.
type ExchangeDeclare struct {
	Name       string        `mapstructure:"name" yaml:"name" validate:"required"`
	Type       string        `mapstructure:"type" yaml:"type" validate:"required,oneof=direct fanout topic headers"`
	Durable    bool          `mapstructure:"durable" yaml:"durable"`
	AutoDelete bool          `mapstructure:"auto_delete" yaml:"auto_delete"`
	Internal   bool          `mapstructure:"internal" yaml:"internal"`
	Args       amqp091.Table `mapstructure:"args" yaml:"args"`
}

// QueueBinding binds the client queue to Exchange under every routing key.
type QueueBinding struct {
	Exchange    ExchangeDeclare `mapstructure:"exchange" yaml:"exchange"`
	RoutingKeys []string        `mapstructure:"routing_keys" yaml:"routing_keys" validate:"min=1"`
	BindArgs    amqp091.Table   `mapstructure:"bind_args" yaml:"bind_args"`
}

// Validate checks the binding before it is used as a preparation hook.
func (b *QueueBinding) Validate() error {
	if err := configValidator().Struct(b); err != nil {
		return fmt.Errorf("invalid queue binding: %w", err)
	}

	return nil
}

// BindToExchange returns a preparation hook that declares the exchange and binds the queue to it.
func BindToExchange(b QueueBinding) QueuePreparationHandler {
	return func(_ context.Context, queue amqp091.Queue, ch Channel) error {
		ex := b.Exchange
		if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDelete, ex.Internal, false, ex.Args); err != nil {
			return fmt.Errorf("declare exchange: %w", err)
		}

		for _, key := range b.RoutingKeys {
			if err := ch.QueueBind(queue.Name, key, ex.Name, false, b.BindArgs); err != nil {
				return fmt.Errorf("create queue binding %q: %w", key, err)
			}
		}

		return nil
	}
}
