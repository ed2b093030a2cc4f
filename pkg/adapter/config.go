// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rabbitmq/amqp091-go"
)

const mimeReadLimit = 512 //bytes that mime will read

const (
	defaultConnTimeout = 30 * time.Second
	defaultHeartbeat   = 10 * time.Second
)

// ClientConfig is captured at construction and never changes for the lifetime of a Client.
// MessageTTL is either unset or at least the one millisecond the broker can express.
type ClientConfig struct {
	Username          string        `mapstructure:"username" yaml:"username"`
	Password          string        `mapstructure:"password" yaml:"password"`
	Host              string        `mapstructure:"host" yaml:"host" validate:"required,hostname_port"`
	VHost             string        `mapstructure:"vhost" yaml:"vhost"`
	QueueName         string        `mapstructure:"queue" yaml:"queue" validate:"required"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval" validate:"gt=0"`
	MessageTTL        time.Duration `mapstructure:"message_ttl" yaml:"message_ttl" validate:"eq=0|gte=1ms"`
	Persistent        bool          `mapstructure:"is_persistent" yaml:"is_persistent"`
	TcpHeartBeat      time.Duration `mapstructure:"tcp_heartbeat" yaml:"tcp_heartbeat" validate:"gte=0"`
	ConnTimeout       time.Duration `mapstructure:"conn_timeout" yaml:"conn_timeout" validate:"gte=0"`
	Properties        amqp091.Table `mapstructure:"properties" yaml:"properties"`
	Logging           bool          `mapstructure:"logging" yaml:"logging"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	return validate
}

// Validate checks that the configuration can be used to build a Client.
func (c *ClientConfig) Validate() error {
	if c == nil {
		return ConfigEmptyError{}
	}

	if err := configValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}

	return nil
}

// uri builds the broker address. Credentials travel through SASL, never through the URI.
func (c *ClientConfig) uri() string {
	u := &url.URL{
		Scheme: "amqp",
		Host:   c.Host,
	}

	return u.String()
}

// endpoint is the log-safe description of the broker.
func (c *ClientConfig) endpoint() string {
	return c.Host + "/" + strings.TrimPrefix(c.VHost, "/")
}

func (c *ClientConfig) amqpConfig() amqp091.Config {
	timeout := c.ConnTimeout
	if timeout == 0 {
		timeout = defaultConnTimeout
	}

	heartbeat := c.TcpHeartBeat
	if heartbeat == 0 {
		heartbeat = defaultHeartbeat
	}

	cfg := amqp091.Config{
		Vhost:      c.VHost,
		Properties: c.Properties,
		Heartbeat:  heartbeat,
		Dial:       amqp091.DefaultDial(timeout),
	}

	// without credentials amqp091 falls back to the URI defaults
	if c.Username != "" {
		cfg.SASL = []amqp091.Authentication{
			&amqp091.PlainAuth{Username: c.Username, Password: c.Password},
		}
	}

	return cfg
}

// expiration renders MessageTTL in the per-message format expected by the broker.
func (c *ClientConfig) expiration() string {
	if c.MessageTTL <= 0 {
		return ""
	}

	return fmt.Sprintf("%d", c.MessageTTL.Milliseconds())
}
