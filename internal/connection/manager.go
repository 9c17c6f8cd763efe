package connection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/gamesocket/internal/channel"
)

// Manager owns the process-wide Channel and the per-handle listener
// bookkeeping layered on top of it. All methods are safe for concurrent use,
// including from inside listeners.
type Manager struct {
	factory   ChannelFactory
	identity  IdentitySource
	logger    *slog.Logger
	newHandle func() Handle

	// One lock guards everything below for the duration of each operation.
	mu          sync.Mutex
	ch          channel.Channel
	onRecovered func()
	tracker     *tracker
	registry    *registry
	once        *biMap[*channel.Listener, *channel.Listener] // caller listener to registered wrappers, oldest first
}

// New creates a Manager. No channel exists until Initialize is called.
func New(factory ChannelFactory, identity IdentitySource, opts ...Option) *Manager {
	m := &Manager{
		factory:   factory,
		identity:  identity,
		logger:    slog.Default(),
		newHandle: newUUIDHandle,
		tracker:   newTracker(),
		registry:  newRegistry(),
		once:      newBiMap[*channel.Listener, *channel.Listener](),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "connection")
	return m
}

// Initialize builds a dormant channel and clears all bookkeeping. An existing
// channel is closed first. onErr receives every connect_error; onRecovered
// runs on every successful connect. Either may be nil.
func (m *Manager) Initialize(onErr ConnectionErrorFunc, onRecovered func()) channel.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ch != nil {
		m.ch.Close()
		m.logger.Warn("channel re-initialized", "attached", m.tracker.len())
	}

	ch := m.factory(m.authPayload)
	m.ch = ch
	m.onRecovered = onRecovered
	m.tracker = newTracker()
	m.registry = newRegistry()
	m.once = newBiMap[*channel.Listener, *channel.Listener]()

	if onErr != nil {
		ch.On(channel.EventConnectError, channel.NewListener(func(ev channel.Event) {
			onErr(ch, ev.Err)
		}))
	}
	if onRecovered != nil {
		ch.On(channel.EventConnect, channel.NewListener(func(channel.Event) {
			onRecovered()
		}))
	}

	return ch
}

// authPayload is read by the channel on every connect attempt.
func (m *Manager) authPayload() map[string]any {
	payload := map[string]any{}
	if m.identity == nil {
		return payload
	}
	if id := m.identity.AuthID(); id != "" {
		payload[AuthKey] = id
	}
	return payload
}

// connectLocked starts a connect attempt if the channel is idle. It reports
// whether an attempt was started. Must be called with m.mu held.
func (m *Manager) connectLocked() (bool, error) {
	if m.ch == nil {
		return false, ErrNotInitialized
	}
	if !m.ch.Disconnected() {
		return false, nil
	}
	m.ch.Connect()
	return true, nil
}

// disconnectLocked closes the channel if it is open or connecting. Must be
// called with m.mu held.
func (m *Manager) disconnectLocked() bool {
	if m.ch == nil || m.ch.Disconnected() {
		return false
	}
	m.ch.Disconnect()
	return true
}

// recovered runs the onRecovered callback outside the lock.
func (m *Manager) recovered(fn func()) {
	if fn != nil {
		fn()
	}
}

// Attach mints a new handle and connects the channel if it is idle.
func (m *Manager) Attach() (channel.Channel, Handle, error) {
	m.mu.Lock()
	if m.ch == nil {
		m.mu.Unlock()
		return nil, "", ErrNotInitialized
	}

	h := m.newHandle()
	m.tracker.add(h)

	started, err := m.connectLocked()
	ch, onRecovered := m.ch, m.onRecovered
	m.mu.Unlock()

	if err != nil {
		return nil, "", err
	}
	if started {
		m.recovered(onRecovered)
	}

	m.logger.Debug("attached", "handle", h, "connecting", started)
	return ch, h, nil
}

// AttachScoped attaches, runs register, and detaches when ctx is done. If
// register fails the handle is detached immediately.
func (m *Manager) AttachScoped(ctx context.Context, register func(channel.Channel, Handle) error) (Handle, error) {
	ch, h, err := m.Attach()
	if err != nil {
		return "", err
	}

	if register != nil {
		if err := register(ch, h); err != nil {
			m.Detach(h)
			return "", err
		}
	}

	go func() {
		<-ctx.Done()
		m.Detach(h)
	}()

	return h, nil
}

// Detach removes every listener registered under h and forgets h. The
// channel is disconnected once no handles and no listeners remain. Detach
// is idempotent.
func (m *Manager) Detach(h Handle) {
	m.mu.Lock()
	if m.ch == nil {
		m.mu.Unlock()
		return
	}

	if m.tracker.has(h) {
		m.offAnyLocked(h, nil)
		m.offLocked(h, "", nil)
		m.tracker.remove(h)
	}

	stopped := false
	if m.tracker.len() == 0 && m.registry.empty() {
		stopped = m.disconnectLocked()
	}
	onRecovered := m.onRecovered
	m.mu.Unlock()

	if stopped {
		m.recovered(onRecovered)
		m.logger.Debug("last consumer detached, channel disconnected", "handle", h)
	}
}

// checkLocked validates the manager state for a registration call. It
// returns false with a nil error for an unknown handle.
func (m *Manager) checkLocked(h Handle) (bool, error) {
	if m.ch == nil {
		return false, ErrNotInitialized
	}
	if !m.tracker.has(h) {
		m.logger.Error("unknown handle, was Attach called?", "handle", h)
		return false, nil
	}
	return true, nil
}

// OnAnyNamespaced registers l for every server event, scoped to h.
func (m *Manager) OnAnyNamespaced(h Handle, l *channel.Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok, err := m.checkLocked(h); !ok {
		return err
	}

	m.ch.OnAny(l)
	m.registry.addAny(h, l)
	return nil
}

// OffAnyNamespaced removes catch-all listener l from h, or all of h's
// catch-all listeners when l is nil.
func (m *Manager) OffAnyNamespaced(h Handle, l *channel.Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok, err := m.checkLocked(h); !ok {
		return err
	}

	m.offAnyLocked(h, l)
	return nil
}

func (m *Manager) offAnyLocked(h Handle, l *channel.Listener) {
	if l != nil {
		if m.registry.removeAny(h, l) {
			m.ch.OffAny(l)
		}
		return
	}

	for _, active := range m.registry.takeAny(h) {
		m.ch.OffAny(active)
	}
}

// OnNamespaced registers l for event, scoped to h.
func (m *Manager) OnNamespaced(h Handle, event string, l *channel.Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok, err := m.checkLocked(h); !ok {
		return err
	}

	m.ch.On(event, l)
	m.registry.add(h, event, l)
	return nil
}

// OnceNamespaced registers l for the next delivery of event, scoped to h.
// Bookkeeping is removed before l runs, so a panicking l is still cleaned up.
func (m *Manager) OnceNamespaced(h Handle, event string, l *channel.Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok, err := m.checkLocked(h); !ok {
		return err
	}

	var wrapper *channel.Listener
	wrapper = channel.NewListener(func(ev channel.Event) {
		if !m.claimOnce(h, event, wrapper) {
			return
		}
		l.Call(ev)
	})

	m.ch.Once(event, wrapper)
	m.registry.add(h, event, wrapper)
	m.once.add(l, wrapper)
	return nil
}

// claimOnce drops a fired once wrapper from the bookkeeping. It reports
// false if the wrapper was removed in the meantime.
func (m *Manager) claimOnce(h Handle, event string, wrapper *channel.Listener) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registry.remove(h, event, wrapper) {
		return false
	}
	m.once.deleteByValue(wrapper)
	return true
}

// OffNamespaced removes listeners registered under h. With event == "" every
// listener of h is removed; with l == nil every listener of h for event is
// removed; otherwise one registration of l is removed. A once-listener is
// removed by passing the listener originally given to OnceNamespaced; when
// it was registered more than once, the oldest pending registration goes.
func (m *Manager) OffNamespaced(h Handle, event string, l *channel.Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok, err := m.checkLocked(h); !ok {
		return err
	}

	m.offLocked(h, event, l)
	return nil
}

func (m *Manager) offLocked(h Handle, event string, l *channel.Listener) {
	if event == "" {
		for _, name := range m.registry.events(h) {
			m.offLocked(h, name, nil)
		}
		return
	}

	if l != nil {
		for _, wrapper := range m.once.values(l) {
			if m.registry.remove(h, event, wrapper) {
				m.once.deleteByValue(wrapper)
				m.ch.Off(event, wrapper)
				return
			}
		}
		if m.registry.remove(h, event, l) {
			m.ch.Off(event, l)
		}
		return
	}

	for _, active := range m.registry.take(h, event) {
		m.ch.Off(event, active)
		m.once.deleteByValue(active)
	}
}

// OnReconnect arranges for l to run on every connect that follows the next
// disconnect, scoped to h. It never fires for the initial connect.
func (m *Manager) OnReconnect(h Handle, l *channel.Listener) error {
	return m.OnceNamespaced(h, channel.EventDisconnect, channel.NewListener(func(channel.Event) {
		if err := m.OnNamespaced(h, channel.EventConnect, l); err != nil {
			m.logger.Error("failed to install reconnect listener", "handle", h, "error", err)
		}
	}))
}

// Channel returns the current channel, or nil before Initialize.
func (m *Manager) Channel() channel.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ch
}

// Stats returns current bookkeeping statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	anyCount, named := m.registry.counts()
	stats := ManagerStats{
		Attached:       m.tracker.len(),
		AnyListeners:   anyCount,
		EventListeners: named,
		OnceListeners:  m.once.len(),
	}
	if m.ch != nil {
		stats.State = m.ch.State()
	}
	return stats
}
