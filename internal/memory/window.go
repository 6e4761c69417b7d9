package memory

import "time"

// Entry is one (key, value) element of a Window.
type Entry[T any] struct {
	Key     string    `json:"key"`
	Value   T         `json:"value"`
	SavedAt time.Time `json:"saved_at"`
}

// Window is a fixed-capacity, insertion-ordered buffer holding at most k
// entries; pushing past capacity evicts the oldest. It is not safe for
// concurrent use — the Manager serialises access.
type Window[T any] struct {
	capacity int
	entries  []Entry[T]
}

// NewWindow builds a window with the given capacity. Capacities below one
// are coerced to one.
func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{capacity: capacity}
}

// Push appends entry, evicting the oldest entry when the window is full.
func (w *Window[T]) Push(entry Entry[T]) {
	w.entries = append(w.entries, entry)
	if len(w.entries) > w.capacity {
		keep := make([]Entry[T], w.capacity)
		copy(keep, w.entries[len(w.entries)-w.capacity:])
		w.entries = keep
	}
}

// Entries returns a copy of the window content, oldest first.
func (w *Window[T]) Entries() []Entry[T] {
	if len(w.entries) == 0 {
		return nil
	}
	out := make([]Entry[T], len(w.entries))
	copy(out, w.entries)
	return out
}

// Latest returns the most recently pushed entry.
func (w *Window[T]) Latest() (Entry[T], bool) {
	if len(w.entries) == 0 {
		var zero Entry[T]
		return zero, false
	}
	return w.entries[len(w.entries)-1], true
}

// Len reports the current entry count.
func (w *Window[T]) Len() int { return len(w.entries) }

// Cap reports the capacity k.
func (w *Window[T]) Cap() int { return w.capacity }

// Clear drops all entries.
func (w *Window[T]) Clear() { w.entries = nil }

// windowFrom rebuilds a window from persisted entries, re-applying the bound
// in case the configured capacity shrank between runs.
func windowFrom[T any](entries []Entry[T], capacity int) *Window[T] {
	w := NewWindow[T](capacity)
	for _, entry := range entries {
		w.Push(entry)
	}
	return w
}
