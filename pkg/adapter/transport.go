// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/atomic"
)

// Channel is the subset of *amqp091.Channel the client relies on.
// It is also what message handlers and queue-preparation hooks receive.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Cancel(consumer string, noWait bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	NotifyClose(c chan *amqp091.Error) chan *amqp091.Error
	IsClosed() bool
	Close() error
}

// Connection owns one transport connection.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(c chan *amqp091.Error) chan *amqp091.Error
	NotifyBlocked(c chan amqp091.Blocking) chan amqp091.Blocking
	// SentSinceLastCheck reports whether a frame was written within the last
	// liveness window, heartbeats included.
	SentSinceLastCheck() bool
	IsClosed() bool
	Close() error
}

// Dialer opens a Connection to uri.
type Dialer func(uri string, cfg amqp091.Config) (Connection, error)

var _ Channel = (*amqp091.Channel)(nil)

// amqpConnection adapts *amqp091.Connection to Connection.
type amqpConnection struct {
	*amqp091.Connection
	meter  *meteredConn
	window time.Duration
}

// DialAMQP dials the broker and meters every byte written on the socket.
func DialAMQP(uri string, cfg amqp091.Config) (Connection, error) {
	var (
		meter = new(meteredConn)
		dial  = cfg.Dial
	)

	if dial == nil {
		dial = amqp091.DefaultDial(defaultConnTimeout)
	}

	cfg.Dial = func(network, addr string) (net.Conn, error) {
		conn, err := dial(network, addr)
		if err != nil {
			return nil, err
		}

		meter.Conn = conn

		return meter, nil
	}

	con, err := amqp091.DialConfig(uri, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial amqp091: %w", err)
	}

	heartbeat := con.Config.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	return &amqpConnection{
		Connection: con,
		meter:      meter,
		window:     2 * heartbeat,
	}, nil
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}

	return ch, nil
}

func (c *amqpConnection) SentSinceLastCheck() bool {
	return c.meter.sentWithin(c.window)
}

// meteredConn records the time of the last successful write.
type meteredConn struct {
	net.Conn
	lastWrite atomic.Int64
}

func (m *meteredConn) Write(b []byte) (int, error) {
	n, err := m.Conn.Write(b)
	if n > 0 {
		m.lastWrite.Store(time.Now().UnixNano())
	}

	return n, err
}

func (m *meteredConn) sentWithin(window time.Duration) bool {
	last := m.lastWrite.Load()
	if last == 0 {
		return false
	}

	return time.Since(time.Unix(0, last)) <= window
}
