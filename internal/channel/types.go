package channel

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrClosed           = errors.New("channel closed")
	ErrHandshakeTimeout = errors.New("handshake timeout")
	ErrUnexpectedPacket = errors.New("unexpected handshake packet")
)

// Reserved event names. Catch-all listeners never receive these.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// Disconnect reasons, delivered as the first argument of a disconnect event.
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonServerDisconnect = "io server disconnect"
	ReasonTransportClose   = "transport close"
	ReasonPingTimeout      = "ping timeout"
)

// UnknownPlayerMessage is the rejection sent by the server when the auth
// payload names a player it does not know.
const UnknownPlayerMessage = "unknown_player_id"

// State is the connection state of a Channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Event is a single delivery from the channel.
type Event struct {
	Name string            // Event name (reserved or server-sent)
	Args []json.RawMessage // Raw JSON arguments, in order
	Err  error             // Set for connect_error only
}

// Arg decodes the i-th argument into v.
func (e Event) Arg(i int, v any) error {
	if i < 0 || i >= len(e.Args) {
		return errors.New("argument index out of range")
	}
	return json.Unmarshal(e.Args[i], v)
}

// Reason returns the disconnect reason, or "" for other events.
func (e Event) Reason() string {
	if e.Name != EventDisconnect {
		return ""
	}
	var reason string
	if err := e.Arg(0, &reason); err != nil {
		return ""
	}
	return reason
}

// Handler receives events.
type Handler func(Event)

// Listener is a registered callback. Its pointer identity is what
// Off and OffAny match against, so keep the pointer to remove it later.
type Listener struct {
	handler Handler
}

// NewListener wraps h so it can be registered and later removed.
func NewListener(h Handler) *Listener {
	return &Listener{handler: h}
}

// Call invokes the listener.
func (l *Listener) Call(ev Event) {
	l.handler(ev)
}

// ConnectError is a rejection sent by the server during the handshake.
type ConnectError struct {
	Message string
	Data    json.RawMessage
}

func (e *ConnectError) Error() string {
	return "connect rejected: " + e.Message
}

// IsUnknownPlayer reports whether err is a handshake rejection caused by
// an unknown or stale player identity.
func IsUnknownPlayer(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce) && ce.Message == UnknownPlayerMessage
}

// AuthFunc supplies the handshake payload. It is called on every connect
// attempt so identity changes are picked up on reconnect.
type AuthFunc func() map[string]any

// Packet types on the wire.
const (
	PacketAuth         = "auth"
	PacketConnect      = "connect"
	PacketConnectError = "connect_error"
	PacketEvent        = "event"
	PacketDisconnect   = "disconnect"
)

// Packet is the JSON envelope for every frame in both directions.
type Packet struct {
	Type  string            `json:"type"`
	SID   string            `json:"sid,omitempty"`
	Event string            `json:"event,omitempty"`
	Args  []json.RawMessage `json:"args,omitempty"`
	Data  json.RawMessage   `json:"data,omitempty"`
}

// ConnectErrorData is the payload of a connect_error packet.
type ConnectErrorData struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config configures a Channel.
type Config struct {
	URL                string        // WebSocket URL (e.g., wss://cards.example.com/ws)
	Auth               AuthFunc      // Handshake payload supplier (nil = empty payload)
	HandshakeTimeout   time.Duration // Dial + auth acknowledgement deadline
	PingInterval       time.Duration // Interval between client pings
	PingTimeout        time.Duration // Max silence before the connection is considered dead
	WriteTimeout       time.Duration // Write deadline for frames
	Reconnection       bool          // Reconnect automatically after involuntary loss
	ReconnectBaseDelay time.Duration // First reconnection delay
	ReconnectMaxDelay  time.Duration // Reconnection delay ceiling
	ReconnectAttempts  int           // Max consecutive attempts (0 = unlimited)
	QueueSize          int           // Initial dispatch queue capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:   10 * time.Second,
		PingInterval:       25 * time.Second,
		PingTimeout:        60 * time.Second,
		WriteTimeout:       5 * time.Second,
		Reconnection:       true,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  5 * time.Second,
		QueueSize:          64,
	}
}
