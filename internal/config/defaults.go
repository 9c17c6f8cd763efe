package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "http://localhost:8000"
	DefaultWSURL              = "ws://localhost:8000/ws"
	DefaultServerTimeout      = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultPingInterval       = 25 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 5 * time.Second
	DefaultQueueSize          = 64
	DefaultPlayerName         = "Player"
	DefaultMaxAttempts        = 3
	DefaultRecoveryTimeout    = 10 * time.Second
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// DefaultIdentityPath returns the profile location under the user config
// directory, falling back to the working directory.
func DefaultIdentityPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "gamesocket", "profile.yaml")
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.RestURL == "" {
		c.Server.RestURL = DefaultRestURL
	}
	if c.Server.WSURL == "" {
		c.Server.WSURL = DefaultWSURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultServerTimeout
	}
	if c.Server.MaxRetries == nil {
		c.Server.MaxRetries = intPtr(DefaultMaxRetries)
	}

	// Channel defaults
	if c.Channel.HandshakeTimeout == 0 {
		c.Channel.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Channel.PingInterval == 0 {
		c.Channel.PingInterval = DefaultPingInterval
	}
	if c.Channel.PingTimeout == 0 {
		c.Channel.PingTimeout = DefaultPingTimeout
	}
	if c.Channel.WriteTimeout == 0 {
		c.Channel.WriteTimeout = DefaultWriteTimeout
	}
	if c.Channel.ReconnectBaseDelay == 0 {
		c.Channel.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Channel.ReconnectMaxDelay == 0 {
		c.Channel.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Channel.QueueSize == 0 {
		c.Channel.QueueSize = DefaultQueueSize
	}

	// Identity defaults
	if c.Identity.Path == "" {
		c.Identity.Path = DefaultIdentityPath()
	}
	if c.Identity.PlayerName == "" {
		c.Identity.PlayerName = DefaultPlayerName
	}

	// Recovery defaults
	if c.Recovery.MaxAttempts == nil {
		c.Recovery.MaxAttempts = intPtr(DefaultMaxAttempts)
	}
	if c.Recovery.Timeout == 0 {
		c.Recovery.Timeout = DefaultRecoveryTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func intPtr(v int) *int {
	return &v
}
