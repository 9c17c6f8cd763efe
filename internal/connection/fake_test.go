package connection

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/rickgao/gamesocket/internal/channel"
)

// call is one recorded operation on a fakeChannel.
type call struct {
	op       string
	event    string
	listener *channel.Listener
}

type fakeRegistration struct {
	listener *channel.Listener
	once     bool
}

// fakeChannel records calls and dispatches fired events synchronously.
type fakeChannel struct {
	auth channel.AuthFunc

	mu     sync.Mutex
	state  channel.State
	closed bool
	calls  []call
	named  map[string][]*fakeRegistration
	any    []*fakeRegistration
}

func newFakeChannel(auth channel.AuthFunc) *fakeChannel {
	return &fakeChannel{
		auth:  auth,
		state: channel.StateDisconnected,
		named: make(map[string][]*fakeRegistration),
	}
}

// fakeFactory returns a ChannelFactory and a pointer to the channels it built.
func fakeFactory() (ChannelFactory, *[]*fakeChannel) {
	var built []*fakeChannel
	return func(auth channel.AuthFunc) channel.Channel {
		fc := newFakeChannel(auth)
		built = append(built, fc)
		return fc
	}, &built
}

func (f *fakeChannel) record(op, event string, l *channel.Listener) {
	f.calls = append(f.calls, call{op: op, event: event, listener: l})
}

func (f *fakeChannel) Connect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("connect", "", nil)
	f.state = channel.StateConnected
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("disconnect", "", nil)
	f.state = channel.StateDisconnected
}

func (f *fakeChannel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close", "", nil)
	f.closed = true
	f.state = channel.StateDisconnected
}

func (f *fakeChannel) State() channel.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeChannel) Connected() bool    { return f.State() == channel.StateConnected }
func (f *fakeChannel) Disconnected() bool { return f.State() == channel.StateDisconnected }
func (f *fakeChannel) ID() string         { return "fake" }

func (f *fakeChannel) On(event string, l *channel.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("on", event, l)
	f.named[event] = append(f.named[event], &fakeRegistration{listener: l})
}

func (f *fakeChannel) Once(event string, l *channel.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("once", event, l)
	f.named[event] = append(f.named[event], &fakeRegistration{listener: l, once: true})
}

func (f *fakeChannel) Off(event string, l *channel.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("off", event, l)
	regs := f.named[event]
	for i, r := range regs {
		if r.listener == l {
			f.named[event] = slices.Delete(regs, i, i+1)
			break
		}
	}
}

func (f *fakeChannel) OnAny(l *channel.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("onAny", "", l)
	f.any = append(f.any, &fakeRegistration{listener: l})
}

func (f *fakeChannel) OffAny(l *channel.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("offAny", "", l)
	for i, r := range f.any {
		if r.listener == l {
			f.any = slices.Delete(f.any, i, i+1)
			break
		}
	}
}

func (f *fakeChannel) Emit(event string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("emit", event, nil)
	return nil
}

// fire delivers an event the way the real dispatcher does: catch-all
// listeners first (never for reserved events), then named listeners in
// registration order, with once registrations claimed before they run.
func (f *fakeChannel) fire(name string, args ...any) {
	ev := channel.Event{Name: name}
	for _, a := range args {
		if err, ok := a.(error); ok && name == channel.EventConnectError {
			ev.Err = err
			continue
		}
		b, _ := json.Marshal(a)
		ev.Args = append(ev.Args, b)
	}

	f.mu.Lock()
	var anys []*fakeRegistration
	if name != channel.EventConnect && name != channel.EventDisconnect && name != channel.EventConnectError {
		anys = slices.Clone(f.any)
	}
	regs := slices.Clone(f.named[name])
	f.mu.Unlock()

	for _, r := range anys {
		if f.live(r, "") {
			r.listener.Call(ev)
		}
	}
	for _, r := range regs {
		if !f.live(r, name) {
			continue
		}
		if r.once {
			f.mu.Lock()
			f.named[name] = slices.DeleteFunc(f.named[name], func(x *fakeRegistration) bool { return x == r })
			f.mu.Unlock()
		}
		r.listener.Call(ev)
	}
}

func (f *fakeChannel) live(r *fakeRegistration, event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event == "" {
		return slices.Contains(f.any, r)
	}
	return slices.Contains(f.named[event], r)
}

// count returns how many times op was called.
func (f *fakeChannel) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

// called reports whether op was called with event and listener.
func (f *fakeChannel) called(op, event string, l *channel.Listener) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.op == op && c.event == event && c.listener == l {
			return true
		}
	}
	return false
}

// native returns the number of live native registrations for event
// ("" = catch-all).
func (f *fakeChannel) native(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event == "" {
		return len(f.any)
	}
	return len(f.named[event])
}

func (f *fakeChannel) clearCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
