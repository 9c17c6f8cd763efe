package config

import (
	"time"

	"github.com/rickgao/gamesocket/internal/channel"
	"github.com/rickgao/gamesocket/internal/recovery"
)

// Config is the root configuration for a gamesocket client.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Channel  ChannelConfig  `yaml:"channel"`
	Identity IdentityConfig `yaml:"identity"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds game server endpoints.
type ServerConfig struct {
	RestURL    string        `yaml:"rest_url"` // Base URL of the REST API
	WSURL      string        `yaml:"ws_url"`   // Event channel WebSocket URL
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"` // nil = default, 0 = no retries
}

// ChannelConfig holds event channel settings.
type ChannelConfig struct {
	HandshakeTimeout    time.Duration `yaml:"handshake_timeout"`
	PingInterval        time.Duration `yaml:"ping_interval"`
	PingTimeout         time.Duration `yaml:"ping_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	DisableReconnection bool          `yaml:"disable_reconnection"`
	ReconnectBaseDelay  time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay   time.Duration `yaml:"reconnect_max_delay"`
	ReconnectAttempts   int           `yaml:"reconnect_attempts"` // 0 = unlimited
	QueueSize           int           `yaml:"queue_size"`
}

// IdentityConfig holds the local player profile settings.
type IdentityConfig struct {
	Path       string `yaml:"path"`        // Profile file (player name + auth token)
	PlayerName string `yaml:"player_name"` // Name used when provisioning a new identity
}

// RecoveryConfig holds connection error policy settings.
type RecoveryConfig struct {
	MaxAttempts *int          `yaml:"max_attempts"` // nil = default, 0 = never re-provision
	Timeout     time.Duration `yaml:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ChannelOptions converts the channel and server sections to a channel.Config.
// The Auth supplier is left for the connection manager to set.
func (c *Config) ChannelOptions() channel.Config {
	return channel.Config{
		URL:                c.Server.WSURL,
		HandshakeTimeout:   c.Channel.HandshakeTimeout,
		PingInterval:       c.Channel.PingInterval,
		PingTimeout:        c.Channel.PingTimeout,
		WriteTimeout:       c.Channel.WriteTimeout,
		Reconnection:       !c.Channel.DisableReconnection,
		ReconnectBaseDelay: c.Channel.ReconnectBaseDelay,
		ReconnectMaxDelay:  c.Channel.ReconnectMaxDelay,
		ReconnectAttempts:  c.Channel.ReconnectAttempts,
		QueueSize:          c.Channel.QueueSize,
	}
}

// RecoveryOptions converts the recovery section to a recovery.Config.
// Defaults must have been applied.
func (c *Config) RecoveryOptions() recovery.Config {
	return recovery.Config{
		MaxAttempts: *c.Recovery.MaxAttempts,
		Timeout:     c.Recovery.Timeout,
	}
}
