package connection

import (
	"slices"
	"testing"

	"github.com/rickgao/gamesocket/internal/channel"
)

func TestRegistry_RemoveDeletesEmptyKeys(t *testing.T) {
	r := newRegistry()
	l1, l2 := noop(), noop()

	r.add("h", "a", l1)
	r.add("h", "b", l2)

	if !r.remove("h", "a", l1) {
		t.Fatal("remove should report success")
	}
	if r.has("h", "a") {
		t.Error("emptied event key should be deleted")
	}
	if r.remove("h", "a", l1) {
		t.Error("second remove should report false")
	}

	r.remove("h", "b", l2)
	if _, ok := r.named["h"]; ok {
		t.Error("emptied handle key should be deleted")
	}
	if !r.empty() {
		t.Error("registry should be empty")
	}
}

func TestRegistry_DuplicateRegistrations(t *testing.T) {
	r := newRegistry()
	l := noop()

	r.add("h", "a", l)
	r.add("h", "a", l)
	r.remove("h", "a", l)

	if got := r.named["h"]["a"]; len(got) != 1 {
		t.Errorf("remaining = %d, want 1", len(got))
	}
}

func TestRegistry_TakeAndEvents(t *testing.T) {
	r := newRegistry()
	l1, l2, l3 := noop(), noop(), noop()

	r.add("h", "b", l1)
	r.add("h", "a", l2)
	r.add("h", "a", l3)
	r.addAny("h", l1)

	if got := r.events("h"); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("events = %v", got)
	}

	got := r.take("h", "a")
	if !slices.Equal(got, []*channel.Listener{l2, l3}) {
		t.Errorf("take = %v", got)
	}
	if r.has("h", "a") {
		t.Error("taken event should be deleted")
	}

	if got := r.takeAny("h"); len(got) != 1 || got[0] != l1 {
		t.Errorf("takeAny = %v", got)
	}
	if r.hasAny("h") {
		t.Error("catch-all key should be deleted")
	}

	anyCount, named := r.counts()
	if anyCount != 0 || named != 1 {
		t.Errorf("counts = %d, %d, want 0, 1", anyCount, named)
	}
}

func TestTracker(t *testing.T) {
	tr := newTracker()
	tr.add("h1")
	tr.add("h2")
	tr.remove("h1")
	tr.remove("h1")

	if tr.has("h1") || !tr.has("h2") || tr.len() != 1 {
		t.Errorf("tracker state wrong: %v", tr.handles)
	}
}
