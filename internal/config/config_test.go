package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  rest_url: https://cards.example.com/api
  ws_url: wss://cards.example.com/ws
  timeout: 15s
channel:
  ping_interval: 20s
  disable_reconnection: true
  reconnect_attempts: 5
identity:
  path: /tmp/profile.yaml
  player_name: Ann
recovery:
  max_attempts: 2
log:
  level: debug
  format: json
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.RestURL != "https://cards.example.com/api" {
		t.Errorf("Server.RestURL = %q, want %q", cfg.Server.RestURL, "https://cards.example.com/api")
	}
	if cfg.Server.WSURL != "wss://cards.example.com/ws" {
		t.Errorf("Server.WSURL = %q, want %q", cfg.Server.WSURL, "wss://cards.example.com/ws")
	}
	if cfg.Server.Timeout != 15*time.Second {
		t.Errorf("Server.Timeout = %v, want %v", cfg.Server.Timeout, 15*time.Second)
	}
	if cfg.Channel.PingInterval != 20*time.Second {
		t.Errorf("Channel.PingInterval = %v, want %v", cfg.Channel.PingInterval, 20*time.Second)
	}
	if !cfg.Channel.DisableReconnection {
		t.Error("Channel.DisableReconnection = false, want true")
	}
	if cfg.Identity.PlayerName != "Ann" {
		t.Errorf("Identity.PlayerName = %q, want %q", cfg.Identity.PlayerName, "Ann")
	}
	if cfg.Recovery.MaxAttempts == nil || *cfg.Recovery.MaxAttempts != 2 {
		t.Errorf("Recovery.MaxAttempts = %v, want 2", cfg.Recovery.MaxAttempts)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_GAME_HOST", "play.example.com")

	yaml := `
server:
  rest_url: https://${TEST_GAME_HOST}/api
  ws_url: wss://${TEST_GAME_HOST}/ws
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.WSURL != "wss://play.example.com/ws" {
		t.Errorf("Server.WSURL = %q, want %q", cfg.Server.WSURL, "wss://play.example.com/ws")
	}
	if cfg.Server.RestURL != "https://play.example.com/api" {
		t.Errorf("Server.RestURL = %q, want %q", cfg.Server.RestURL, "https://play.example.com/api")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
server:
  ws_url: wss://cards.example.com/ws
identity:
  path: /tmp/profile.yaml
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Server.WSURL != "wss://cards.example.com/ws" {
		t.Errorf("Server.WSURL = %q, want explicit value", cfg.Server.WSURL)
	}
	if cfg.Server.RestURL != DefaultRestURL {
		t.Errorf("Server.RestURL = %q, want default %q", cfg.Server.RestURL, DefaultRestURL)
	}
	if cfg.Server.Timeout != DefaultServerTimeout {
		t.Errorf("Server.Timeout = %v, want default %v", cfg.Server.Timeout, DefaultServerTimeout)
	}
	if cfg.Channel.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("Channel.HandshakeTimeout = %v, want default %v", cfg.Channel.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.Channel.QueueSize != DefaultQueueSize {
		t.Errorf("Channel.QueueSize = %d, want default %d", cfg.Channel.QueueSize, DefaultQueueSize)
	}
	if cfg.Identity.Path != "/tmp/profile.yaml" {
		t.Errorf("Identity.Path = %q, want explicit value", cfg.Identity.Path)
	}
	if cfg.Identity.PlayerName != DefaultPlayerName {
		t.Errorf("Identity.PlayerName = %q, want default %q", cfg.Identity.PlayerName, DefaultPlayerName)
	}
	if *cfg.Recovery.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Recovery.MaxAttempts = %d, want default %d", *cfg.Recovery.MaxAttempts, DefaultMaxAttempts)
	}
	if *cfg.Server.MaxRetries != DefaultMaxRetries {
		t.Errorf("Server.MaxRetries = %d, want default %d", *cfg.Server.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestLoadWithDefaultsKeepsExplicitZero(t *testing.T) {
	yaml := `
server:
  max_retries: 0
recovery:
  max_attempts: 0
`
	cfg, err := LoadAndValidate(writeTempFile(t, yaml))
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if *cfg.Server.MaxRetries != 0 {
		t.Errorf("Server.MaxRetries = %d, want 0", *cfg.Server.MaxRetries)
	}
	if *cfg.Recovery.MaxAttempts != 0 {
		t.Errorf("Recovery.MaxAttempts = %d, want 0", *cfg.Recovery.MaxAttempts)
	}
	if rc := cfg.RecoveryOptions(); rc.MaxAttempts != 0 {
		t.Errorf("RecoveryOptions().MaxAttempts = %d, want 0", rc.MaxAttempts)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		if err == nil || !strings.Contains(err.Error(), "read config file") {
			t.Errorf("Load() error = %v, want read config file error", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeTempFile(t, "server: [unclosed"))
		if err == nil || !strings.Contains(err.Error(), "parse config yaml") {
			t.Errorf("Load() error = %v, want parse config yaml error", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		_, err := LoadAndValidate(writeTempFile(t, "log:\n  level: loud\n"))
		if err == nil || !strings.Contains(err.Error(), "validate config: log.level") {
			t.Errorf("LoadAndValidate() error = %v, want log.level validation error", err)
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Identity.Path == "" {
		t.Error("Identity.Path should default to a profile location")
	}
	if filepath.Base(cfg.Identity.Path) != "profile.yaml" {
		t.Errorf("Identity.Path = %q, want a profile.yaml file", cfg.Identity.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing rest url",
			modify:  func(c *Config) { c.Server.RestURL = "" },
			wantErr: "server.rest_url is required",
		},
		{
			name:    "rest url with websocket scheme",
			modify:  func(c *Config) { c.Server.RestURL = "ws://localhost:8000" },
			wantErr: `server.rest_url must use scheme [http https], got "ws"`,
		},
		{
			name:    "missing ws url",
			modify:  func(c *Config) { c.Server.WSURL = "" },
			wantErr: "server.ws_url is required",
		},
		{
			name:    "ws url with http scheme",
			modify:  func(c *Config) { c.Server.WSURL = "https://localhost:8000/ws" },
			wantErr: `server.ws_url must use scheme [ws wss], got "https"`,
		},
		{
			name:    "negative max retries",
			modify:  func(c *Config) { c.Server.MaxRetries = intPtr(-1) },
			wantErr: "server.max_retries must be >= 0",
		},
		{
			name:    "zero handshake timeout",
			modify:  func(c *Config) { c.Channel.HandshakeTimeout = 0 },
			wantErr: "channel.handshake_timeout must be > 0",
		},
		{
			name: "base delay above max",
			modify: func(c *Config) {
				c.Channel.ReconnectBaseDelay = 10 * time.Second
				c.Channel.ReconnectMaxDelay = 5 * time.Second
			},
			wantErr: "channel.reconnect_base_delay (10s) cannot exceed reconnect_max_delay (5s)",
		},
		{
			name:    "negative reconnect attempts",
			modify:  func(c *Config) { c.Channel.ReconnectAttempts = -1 },
			wantErr: "channel.reconnect_attempts must be >= 0",
		},
		{
			name:    "zero queue size",
			modify:  func(c *Config) { c.Channel.QueueSize = 0 },
			wantErr: "channel.queue_size must be >= 1",
		},
		{
			name:    "missing player name",
			modify:  func(c *Config) { c.Identity.PlayerName = "" },
			wantErr: "identity.player_name is required",
		},
		{
			name:    "negative recovery attempts",
			modify:  func(c *Config) { c.Recovery.MaxAttempts = intPtr(-1) },
			wantErr: "recovery.max_attempts must be >= 0",
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: `log.level must be one of debug, info, warn, error, got "trace"`,
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() error = nil, want %q", tt.wantErr)
				return
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Server.WSURL = "wss://cards.example.com/ws"
	cfg.Channel.DisableReconnection = true
	cfg.Channel.ReconnectAttempts = 4
	cfg.Recovery.MaxAttempts = intPtr(5)

	ch := cfg.ChannelOptions()
	if ch.URL != "wss://cards.example.com/ws" {
		t.Errorf("URL = %q, want ws_url", ch.URL)
	}
	if ch.Reconnection {
		t.Error("Reconnection = true, want false when disabled")
	}
	if ch.ReconnectAttempts != 4 {
		t.Errorf("ReconnectAttempts = %d, want 4", ch.ReconnectAttempts)
	}
	if ch.QueueSize != DefaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", ch.QueueSize, DefaultQueueSize)
	}
	if ch.Auth != nil {
		t.Error("Auth should be left unset")
	}

	rc := cfg.RecoveryOptions()
	if rc.MaxAttempts != 5 || rc.Timeout != DefaultRecoveryTimeout {
		t.Errorf("RecoveryOptions() = %+v, want MaxAttempts 5 Timeout %v", rc, DefaultRecoveryTimeout)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
