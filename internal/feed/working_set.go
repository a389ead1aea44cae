package feed

// WorkingSet is the display state owned by the cycle scheduler: a bounded,
// most-recent-first list of events eligible for display, a round-robin
// cursor, and a dedup guard of every id ever accepted.
//
// The guard is never evicted for the life of the set; only Reset clears it.
// Not safe for concurrent use.
type WorkingSet struct {
	events []PurchaseEvent
	cursor int
	guard  map[string]struct{}
}

func NewWorkingSet() *WorkingSet {
	return &WorkingSet{cursor: -1, guard: map[string]struct{}{}}
}

// Merge prepends events not yet in the guard, truncates the set to capacity
// and returns how many were accepted. batch is expected most-recent-first.
func (w *WorkingSet) Merge(batch []PurchaseEvent, capacity int) int {
	if capacity < 1 {
		capacity = 1
	}
	fresh := make([]PurchaseEvent, 0, len(batch))
	for _, ev := range batch {
		if ev.ID == "" {
			continue
		}
		if _, dup := w.guard[ev.ID]; dup {
			continue
		}
		w.guard[ev.ID] = struct{}{}
		fresh = append(fresh, ev)
	}
	if len(fresh) == 0 {
		return 0
	}
	w.events = append(fresh, w.events...)
	w.Truncate(capacity)
	return len(fresh)
}

// Truncate drops the oldest events beyond capacity.
func (w *WorkingSet) Truncate(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if len(w.events) > capacity {
		w.events = w.events[:capacity]
	}
	w.clampCursor()
}

// Next returns the event under the cursor and advances it round-robin.
// Events come around again once the cursor wraps.
func (w *WorkingSet) Next() (PurchaseEvent, bool) {
	if len(w.events) == 0 {
		return PurchaseEvent{}, false
	}
	ev := w.events[w.cursor]
	w.cursor = (w.cursor + 1) % len(w.events)
	return ev, true
}

// MarkShown records id in the guard.
func (w *WorkingSet) MarkShown(id string) {
	if id != "" {
		w.guard[id] = struct{}{}
	}
}

// Reset discards the events and the guard.
func (w *WorkingSet) Reset() {
	w.events = nil
	w.cursor = -1
	w.guard = map[string]struct{}{}
}

func (w *WorkingSet) Len() int { return len(w.events) }

// Cursor is -1 when the set is empty.
func (w *WorkingSet) Cursor() int { return w.cursor }

func (w *WorkingSet) Seen(id string) bool {
	_, ok := w.guard[id]
	return ok
}

func (w *WorkingSet) GuardSize() int { return len(w.guard) }

// Events returns a copy of the current set, most recent first.
func (w *WorkingSet) Events() []PurchaseEvent {
	out := make([]PurchaseEvent, len(w.events))
	copy(out, w.events)
	return out
}

// IDs returns the ids of the current set, most recent first.
func (w *WorkingSet) IDs() []string {
	out := make([]string, len(w.events))
	for i, ev := range w.events {
		out[i] = ev.ID
	}
	return out
}

func (w *WorkingSet) clampCursor() {
	switch {
	case len(w.events) == 0:
		w.cursor = -1
	case w.cursor < 0 || w.cursor >= len(w.events):
		w.cursor = 0
	}
}
