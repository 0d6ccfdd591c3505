// Package config gathers every subsystem's tunables into one struct, built
// with the same struct-literal-plus-DefaultX idiom every other package in
// this repository uses for its own config type.
package config

import (
	"log/slog"
	"time"

	"github.com/axmq/broker/broker"
	"github.com/axmq/broker/network"
	"github.com/axmq/broker/pkg/logger"
)

// Config is the top-level configuration for a running broker process.
type Config struct {
	Listener *network.ListenerConfig
	Pool     *network.PoolConfig
	Broker   broker.Config

	// LogLevel is the minimum level the colored slog handler emits.
	LogLevel slog.Level
}

// DefaultConfig returns the broker's out-of-the-box configuration: listen on
// localhost:1883, a 10000-connection pool, a 2-second retransmit cadence,
// info-level logging.
func DefaultConfig() *Config {
	brokerCfg := broker.DefaultConfig()

	return &Config{
		Listener: network.DefaultListenerConfig("localhost:1883"),
		Pool:     network.DefaultPoolConfig(),
		Broker:   brokerCfg,
		LogLevel: slog.LevelInfo,
	}
}

// NewLogger builds the colored slog logger this config's LogLevel selects,
// used for everything the broker and its sessions log through.
func (c *Config) NewLogger() *slog.Logger {
	return logger.NewSlogLogger(c.LogLevel, nil).Slog()
}

// RetransmitInterval is a convenience accessor mirroring the teacher's habit
// of exposing commonly-read nested fields directly off the top config.
func (c *Config) RetransmitInterval() time.Duration {
	return c.Broker.RetransmitInterval
}
