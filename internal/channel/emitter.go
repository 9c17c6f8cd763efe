package channel

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
)

// registration is one native registration. Registering the same Listener
// twice yields two registrations.
type registration struct {
	listener *Listener
	once     bool
}

// emitter holds native listener registrations and dispatches events.
type emitter struct {
	logger *slog.Logger

	mu    sync.Mutex
	named map[string][]*registration
	any   []*registration
}

func newEmitter(logger *slog.Logger) *emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &emitter{
		logger: logger,
		named:  make(map[string][]*registration),
	}
}

func (e *emitter) on(event string, l *Listener, once bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.named[event] = append(e.named[event], &registration{listener: l, once: once})
}

// off removes the first registration of l for event.
func (e *emitter) off(event string, l *Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	regs := e.named[event]
	for i, r := range regs {
		if r.listener == l {
			regs = slices.Delete(regs, i, i+1)
			break
		}
	}
	if len(regs) == 0 {
		delete(e.named, event)
	} else {
		e.named[event] = regs
	}
}

func (e *emitter) onAny(l *Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.any = append(e.any, &registration{listener: l})
}

// offAny removes the first catch-all registration of l.
func (e *emitter) offAny(l *Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.any {
		if r.listener == l {
			e.any = slices.Delete(e.any, i, i+1)
			return
		}
	}
}

// count returns the number of registrations for event ("" = catch-all).
func (e *emitter) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if event == "" {
		return len(e.any)
	}
	return len(e.named[event])
}

// dispatch delivers ev to catch-all listeners (unless reserved) and then to
// the listeners registered for ev.Name, in registration order. Listeners run
// without the lock held; a registration removed mid-dispatch is skipped.
func (e *emitter) dispatch(ev Event) {
	e.mu.Lock()
	var anys []*registration
	if !isReserved(ev.Name) {
		anys = slices.Clone(e.any)
	}
	regs := slices.Clone(e.named[ev.Name])
	e.mu.Unlock()

	for _, r := range anys {
		if e.live(r, "") {
			e.invoke(r.listener, ev)
		}
	}
	for _, r := range regs {
		if r.once {
			if !e.claim(ev.Name, r) {
				continue
			}
		} else if !e.live(r, ev.Name) {
			continue
		}
		e.invoke(r.listener, ev)
	}
}

// live reports whether r is still registered.
func (e *emitter) live(r *registration, event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.any
	if event != "" {
		list = e.named[event]
	}
	return slices.Contains(list, r)
}

// claim removes a once registration, reporting whether it was still present.
func (e *emitter) claim(event string, r *registration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	regs := e.named[event]
	i := slices.Index(regs, r)
	if i < 0 {
		return false
	}
	regs = slices.Delete(regs, i, i+1)
	if len(regs) == 0 {
		delete(e.named, event)
	} else {
		e.named[event] = regs
	}
	return true
}

// invoke runs a listener, recovering a panic so the dispatcher survives.
func (e *emitter) invoke(l *Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("listener panicked",
				"event", ev.Name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	l.Call(ev)
}

func isReserved(event string) bool {
	switch event {
	case EventConnect, EventDisconnect, EventConnectError:
		return true
	}
	return false
}
