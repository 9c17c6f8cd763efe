package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/rickgao/gamesocket/internal/version"
)

// Channel is the bidirectional event connection to the game server.
type Channel interface {
	// Connect starts a connection attempt unless one is connected or in
	// flight. It never blocks; the outcome arrives as a connect or
	// connect_error event.
	Connect()

	// Disconnect closes the connection and cancels pending attempts.
	// It is a no-op when already disconnected.
	Disconnect()

	// Close disconnects and permanently stops event delivery.
	Close()

	// State returns the current connection state.
	State() State

	// Connected reports whether the handshake has completed.
	Connected() bool

	// Disconnected reports whether no connection is open or in flight.
	Disconnected() bool

	// ID returns the server-assigned session id, or "" when not connected.
	ID() string

	// On registers l for event.
	On(event string, l *Listener)

	// Once registers l for the next delivery of event only.
	Once(event string, l *Listener)

	// Off removes one registration of l for event.
	Off(event string, l *Listener)

	// OnAny registers l for every server-sent event.
	OnAny(l *Listener)

	// OffAny removes one catch-all registration of l.
	OffAny(l *Listener)

	// Emit sends an event to the server.
	Emit(event string, args ...any) error
}

// socket implements the Channel interface.
type socket struct {
	cfg     Config
	logger  *slog.Logger
	emitter *emitter
	queue   *eventQueue
	dialer  websocket.Dialer

	// State
	mu       sync.Mutex
	state    State
	gen      uint64 // Bumped on every attempt and teardown; stale goroutines compare against it
	conn     *websocket.Conn
	sid      string
	cancel   context.CancelFunc
	backoff  *backoff.Backoff
	attempts int
	closed   bool

	// Write serialization
	writeMu sync.Mutex
}

// New creates a dormant Channel. Nothing is dialed until Connect.
func New(cfg Config, logger *slog.Logger) Channel {
	if logger == nil {
		logger = slog.Default()
	}

	s := &socket{
		cfg:     cfg,
		logger:  logger,
		emitter: newEmitter(logger),
		queue:   newEventQueue(cfg.QueueSize),
		dialer: websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		state: StateDisconnected,
		backoff: &backoff.Backoff{
			Min:    cfg.ReconnectBaseDelay,
			Max:    cfg.ReconnectMaxDelay,
			Factor: 2,
			Jitter: true,
		},
	}

	go s.dispatchLoop()

	return s
}

// Connect starts a connection attempt.
func (s *socket) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != StateDisconnected {
		return
	}
	s.attempts = 0
	s.startAttempt(0)
}

// Disconnect closes the connection.
func (s *socket) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
}

func (s *socket) disconnectLocked() {
	if s.state == StateDisconnected {
		return
	}

	wasConnected := s.state == StateConnected
	if wasConnected && s.conn != nil {
		data, _ := json.Marshal(Packet{Type: PacketDisconnect})
		if err := s.write(s.conn, data); err != nil {
			s.logger.Debug("failed to send disconnect", "error", err)
		}
		s.writeMu.Lock()
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
	}

	s.teardown()
	s.attempts = 0
	s.backoff.Reset()

	if wasConnected {
		s.queue.push(disconnectEvent(ReasonClientDisconnect))
		s.logger.Debug("channel disconnected", "reason", ReasonClientDisconnect)
	}
}

// Close permanently shuts the channel down. Pending events are discarded.
func (s *socket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.disconnectLocked()
	s.closed = true
	s.queue.close()
}

// State returns the current connection state.
func (s *socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the channel is connected.
func (s *socket) Connected() bool {
	return s.State() == StateConnected
}

// Disconnected reports whether the channel is idle.
func (s *socket) Disconnected() bool {
	return s.State() == StateDisconnected
}

// ID returns the session id.
func (s *socket) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

func (s *socket) On(event string, l *Listener)   { s.emitter.on(event, l, false) }
func (s *socket) Once(event string, l *Listener) { s.emitter.on(event, l, true) }
func (s *socket) Off(event string, l *Listener)  { s.emitter.off(event, l) }
func (s *socket) OnAny(l *Listener)              { s.emitter.onAny(l) }
func (s *socket) OffAny(l *Listener)             { s.emitter.offAny(l) }

// Emit sends an event with JSON-encoded arguments.
func (s *socket) Emit(event string, args ...any) error {
	raw := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("marshal %s argument %d: %w", event, i, err)
		}
		raw = append(raw, b)
	}

	data, err := json.Marshal(Packet{Type: PacketEvent, Event: event, Args: raw})
	if err != nil {
		return fmt.Errorf("marshal packet: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !connected || conn == nil {
		return ErrNotConnected
	}
	return s.write(conn, data)
}

// startAttempt launches a connect attempt after delay. Must be called with s.mu held.
func (s *socket) startAttempt(delay time.Duration) {
	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateConnecting
	s.attempts++

	go s.attempt(ctx, s.gen, delay)
}

// attempt dials and performs the auth handshake, then publishes the outcome.
func (s *socket) attempt(ctx context.Context, gen uint64, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	conn, sid, err := s.handshake(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed {
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		s.logger.Debug("connect attempt failed",
			"url", s.cfg.URL,
			"attempt", s.attempts,
			"error", err,
		)
		retry := s.shouldRetry(err)
		s.teardown()
		s.queue.push(Event{Name: EventConnectError, Err: err})
		if retry {
			s.startAttempt(s.backoff.Duration())
		}
		return
	}

	s.conn = conn
	s.sid = sid
	s.state = StateConnected
	s.attempts = 0
	s.backoff.Reset()
	s.queue.push(Event{Name: EventConnect})

	go s.readLoop(gen, conn)
	go s.heartbeatLoop(ctx, conn)

	s.logger.Debug("channel connected", "url", s.cfg.URL, "sid", sid)
}

// handshake dials the server, sends the auth payload and waits for the ack.
func (s *socket) handshake(ctx context.Context) (*websocket.Conn, string, error) {
	if s.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
		defer cancel()
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return nil, "", fmt.Errorf("dial: %w", err)
	}

	// Unblock the handshake read if the attempt is cancelled or times out.
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	fail := func(err error) (*websocket.Conn, string, error) {
		stop()
		conn.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, "", ErrHandshakeTimeout
		}
		return nil, "", err
	}

	payload := map[string]any{}
	if s.cfg.Auth != nil {
		if p := s.cfg.Auth(); p != nil {
			payload = p
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fail(fmt.Errorf("marshal auth: %w", err))
	}

	if err := conn.WriteJSON(Packet{Type: PacketAuth, Data: data}); err != nil {
		return fail(fmt.Errorf("write auth: %w", err))
	}

	var ack Packet
	if err := conn.ReadJSON(&ack); err != nil {
		return fail(fmt.Errorf("read handshake: %w", err))
	}

	switch ack.Type {
	case PacketConnect:
		if !stop() {
			return fail(ctx.Err())
		}
		return conn, ack.SID, nil

	case PacketConnectError:
		var ced ConnectErrorData
		if len(ack.Data) > 0 {
			if err := json.Unmarshal(ack.Data, &ced); err != nil {
				return fail(fmt.Errorf("decode connect_error: %w", err))
			}
		}
		return fail(&ConnectError{Message: ced.Message, Data: ced.Data})

	default:
		return fail(fmt.Errorf("%w: %q", ErrUnexpectedPacket, ack.Type))
	}
}

// shouldRetry decides whether a failed attempt is retried by the transport.
// Server rejections are left to the caller's policy.
func (s *socket) shouldRetry(err error) bool {
	if !s.cfg.Reconnection {
		return false
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return false
	}
	return s.cfg.ReconnectAttempts == 0 || s.attempts < s.cfg.ReconnectAttempts
}

// readLoop reads frames until the connection fails.
func (s *socket) readLoop(gen uint64, conn *websocket.Conn) {
	if s.cfg.PingTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			reason := ReasonTransportClose
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				reason = ReasonPingTimeout
			}
			s.dropped(gen, reason, true)
			return
		}

		if s.cfg.PingTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
		}

		var p Packet
		if err := json.Unmarshal(data, &p); err != nil {
			s.logger.Warn("discarding malformed frame", "error", err)
			continue
		}

		switch p.Type {
		case PacketEvent:
			if p.Event == "" || isReserved(p.Event) {
				s.logger.Warn("discarding event with invalid name", "event", p.Event)
				continue
			}
			s.deliver(gen, Event{Name: p.Event, Args: p.Args})

		case PacketDisconnect:
			s.dropped(gen, ReasonServerDisconnect, false)
			return

		default:
			s.logger.Debug("ignoring packet", "type", p.Type)
		}
	}
}

// heartbeatLoop keeps the connection alive with pings.
func (s *socket) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	if s.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), s.writeDeadline())
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}

// deliver queues a server event if gen is still the live session.
func (s *socket) deliver(gen uint64, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != StateConnected {
		return
	}
	s.queue.push(ev)
}

// dropped handles loss of the live session.
func (s *socket) dropped(gen uint64, reason string, reconnect bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != StateConnected {
		return
	}

	s.teardown()
	s.queue.push(disconnectEvent(reason))
	s.logger.Info("channel lost", "url", s.cfg.URL, "reason", reason)

	if reconnect && s.cfg.Reconnection && !s.closed {
		s.attempts = 0
		s.startAttempt(s.backoff.Duration())
	}
}

// teardown releases the current session. Must be called with s.mu held.
func (s *socket) teardown() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.sid = ""
	s.state = StateDisconnected
}

func (s *socket) write(conn *websocket.Conn, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(s.writeDeadline())
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *socket) writeDeadline() time.Time {
	if s.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.WriteTimeout)
}

// dispatchLoop delivers queued events one at a time.
func (s *socket) dispatchLoop() {
	for {
		ev, ok := s.queue.pop()
		if !ok {
			return
		}
		s.emitter.dispatch(ev)
	}
}

func disconnectEvent(reason string) Event {
	arg, _ := json.Marshal(reason)
	return Event{Name: EventDisconnect, Args: []json.RawMessage{arg}}
}
