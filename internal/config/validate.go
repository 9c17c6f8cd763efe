package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := validateURL("server.rest_url", c.Server.RestURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("server.ws_url", c.Server.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.Server.MaxRetries != nil && *c.Server.MaxRetries < 0 {
		return errors.New("server.max_retries must be >= 0")
	}

	if c.Channel.HandshakeTimeout <= 0 {
		return errors.New("channel.handshake_timeout must be > 0")
	}
	if c.Channel.ReconnectBaseDelay > c.Channel.ReconnectMaxDelay {
		return fmt.Errorf("channel.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Channel.ReconnectBaseDelay, c.Channel.ReconnectMaxDelay)
	}
	if c.Channel.ReconnectAttempts < 0 {
		return errors.New("channel.reconnect_attempts must be >= 0")
	}
	if c.Channel.QueueSize < 1 {
		return errors.New("channel.queue_size must be >= 1")
	}

	if c.Identity.PlayerName == "" {
		return errors.New("identity.player_name is required")
	}

	if c.Recovery.MaxAttempts != nil && *c.Recovery.MaxAttempts < 0 {
		return errors.New("recovery.max_attempts must be >= 0")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use scheme %v, got %q", field, schemes, u.Scheme)
}
