package connection

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rickgao/gamesocket/internal/channel"
)

// Errors
var (
	ErrNotInitialized = errors.New("channel not initialized")
)

// AuthKey is the handshake payload key carrying the player identity token.
const AuthKey = "player_auth_id"

// Handle identifies one consumer attachment. Handles are never reused.
type Handle string

// ChannelFactory builds a dormant Channel that reads its handshake payload
// from auth on every connect attempt.
type ChannelFactory func(auth channel.AuthFunc) channel.Channel

// WebSocketFactory returns a ChannelFactory producing WebSocket channels.
func WebSocketFactory(cfg channel.Config, logger *slog.Logger) ChannelFactory {
	return func(auth channel.AuthFunc) channel.Channel {
		cfg.Auth = auth
		return channel.New(cfg, logger)
	}
}

// IdentitySource supplies the current player identity token.
type IdentitySource interface {
	AuthID() string
}

// ConnectionErrorFunc handles a failed connect attempt.
type ConnectionErrorFunc func(ch channel.Channel, err error)

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	Attached       int           // Live consumer handles
	AnyListeners   int           // Catch-all registrations
	EventListeners int           // Named registrations (including once wrappers)
	OnceListeners  int           // Pending once-listeners
	State          channel.State // Channel state ("" before Initialize)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHandleGenerator overrides how handles are minted.
func WithHandleGenerator(gen func() Handle) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newHandle = gen
		}
	}
}

func newUUIDHandle() Handle {
	return Handle(uuid.NewString())
}
