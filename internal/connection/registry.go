package connection

import (
	"slices"
	"sort"

	"github.com/rickgao/gamesocket/internal/channel"
)

// registry records which listeners each handle has registered on the
// channel. Emptied lists and maps are deleted so key presence answers
// "does this handle have listeners".
type registry struct {
	any   map[Handle][]*channel.Listener
	named map[Handle]map[string][]*channel.Listener
}

func newRegistry() *registry {
	return &registry{
		any:   make(map[Handle][]*channel.Listener),
		named: make(map[Handle]map[string][]*channel.Listener),
	}
}

func (r *registry) addAny(h Handle, l *channel.Listener) {
	r.any[h] = append(r.any[h], l)
}

// removeAny removes the first catch-all registration of l under h.
func (r *registry) removeAny(h Handle, l *channel.Listener) bool {
	list := r.any[h]
	i := slices.Index(list, l)
	if i < 0 {
		return false
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(r.any, h)
	} else {
		r.any[h] = list
	}
	return true
}

// takeAny removes and returns every catch-all registration under h.
func (r *registry) takeAny(h Handle) []*channel.Listener {
	list := r.any[h]
	delete(r.any, h)
	return list
}

func (r *registry) add(h Handle, event string, l *channel.Listener) {
	events := r.named[h]
	if events == nil {
		events = make(map[string][]*channel.Listener)
		r.named[h] = events
	}
	events[event] = append(events[event], l)
}

// remove removes the first registration of l for event under h.
func (r *registry) remove(h Handle, event string, l *channel.Listener) bool {
	events := r.named[h]
	list := events[event]
	i := slices.Index(list, l)
	if i < 0 {
		return false
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(events, event)
		if len(events) == 0 {
			delete(r.named, h)
		}
	} else {
		events[event] = list
	}
	return true
}

// take removes and returns every registration for event under h.
func (r *registry) take(h Handle, event string) []*channel.Listener {
	events := r.named[h]
	list := events[event]
	delete(events, event)
	if len(events) == 0 {
		delete(r.named, h)
	}
	return list
}

// events returns the event names with registrations under h, sorted.
func (r *registry) events(h Handle) []string {
	names := make([]string, 0, len(r.named[h]))
	for name := range r.named[h] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *registry) hasAny(h Handle) bool {
	_, ok := r.any[h]
	return ok
}

func (r *registry) has(h Handle, event string) bool {
	_, ok := r.named[h][event]
	return ok
}

func (r *registry) empty() bool {
	return len(r.any) == 0 && len(r.named) == 0
}

// counts returns the number of catch-all and named registrations.
func (r *registry) counts() (anyCount, named int) {
	for _, list := range r.any {
		anyCount += len(list)
	}
	for _, events := range r.named {
		for _, list := range events {
			named += len(list)
		}
	}
	return anyCount, named
}
