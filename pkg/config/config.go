// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package config loads the scraper broker settings from a file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GwynCerbin/scraper_rabbit/pkg/adapter"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. SCRAPER_BROKER_PASSWORD.
const envPrefix = "SCRAPER"

// Config is everything the scraper-rabbit binary needs.
type Config struct {
	Broker adapter.ClientConfig
	// Binding is nil when the queue is consumed without an exchange binding.
	Binding *adapter.QueueBinding
	// HTTPAddr is where the readiness endpoint listens.
	HTTPAddr string
	// ShutdownTimeout bounds the wait for the message in flight.
	ShutdownTimeout time.Duration
}

// Load reads the config file at pathFile. The type is inferred from the extension.
func Load(pathFile string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(pathFile)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", pathFile, err)
	}

	return decode(v)
}

// FromBytes reads the config from memory. configType is a format supported by viper
// (e.g. "yaml", "json", "toml").
func FromBytes(configType string, data []byte) (*Config, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v := newViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return decode(v)
}

// envKeys are bound explicitly so values that exist only in the environment,
// such as the broker password, still reach Unmarshal.
var envKeys = []string{
	"broker.host",
	"broker.vhost",
	"broker.username",
	"broker.password",
	"broker.queue",
	"broker.reconnect_interval",
	"broker.message_ttl",
	"broker.is_persistent",
	"broker.tcp_heartbeat",
	"broker.conn_timeout",
	"broker.logging",
	"http.addr",
	"shutdown_timeout",
}

// file mirrors the config file layout.
type file struct {
	Broker  adapter.ClientConfig  `mapstructure:"broker"`
	Binding *adapter.QueueBinding `mapstructure:"binding"`
	HTTP    struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	v.SetDefault("broker.reconnect_interval", 5*time.Second)
	v.SetDefault("broker.tcp_heartbeat", 10*time.Second)
	v.SetDefault("broker.conn_timeout", 30*time.Second)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("shutdown_timeout", 30*time.Second)

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := f.Broker.Validate(); err != nil {
		return nil, err
	}

	if f.Binding != nil {
		if err := f.Binding.Validate(); err != nil {
			return nil, err
		}
	}

	return &Config{
		Broker:          f.Broker,
		Binding:         f.Binding,
		HTTPAddr:        f.HTTP.Addr,
		ShutdownTimeout: f.ShutdownTimeout,
	}, nil
}
