package connection

// tracker is the set of live consumer handles.
type tracker struct {
	handles map[Handle]struct{}
}

func newTracker() *tracker {
	return &tracker{handles: make(map[Handle]struct{})}
}

func (t *tracker) add(h Handle) {
	t.handles[h] = struct{}{}
}

func (t *tracker) remove(h Handle) {
	delete(t.handles, h)
}

func (t *tracker) has(h Handle) bool {
	_, ok := t.handles[h]
	return ok
}

func (t *tracker) len() int {
	return len(t.handles)
}
