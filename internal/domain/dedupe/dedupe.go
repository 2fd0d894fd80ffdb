// Package dedupe provides bounded, insertion-ordered id windows.
//
// A Window serves two purposes: it remembers which pedals were shown
// recently so the matchmaker can avoid repeating them, and it remembers
// which matchups were already voted on so a resubmitted vote is ignored.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCapacity is the size of the recently shown pedal window.
const DefaultCapacity = 14

// Deduper records seen ids to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	Size() int64
}

// Window is a fixed-capacity set of ids that evicts the oldest entry first.
// Adding an id that is already present leaves its position unchanged.
// It is safe for concurrent use.
type Window struct {
	mu       sync.RWMutex
	order    *list.List
	index    map[string]*list.Element
	capacity int
}

var _ Deduper = (*Window)(nil)

// NewWindow creates an empty Window.
func NewWindow(opts ...Option) *Window {
	w := &Window{
		capacity: DefaultCapacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.capacity < 1 {
		w.capacity = 1
	}
	return w
}

// Add records id, evicting the oldest ids while over capacity.
func (w *Window) Add(ids ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range ids {
		w.add(id)
	}
}

func (w *Window) add(id string) bool {
	if _, ok := w.index[id]; ok {
		return false
	}
	w.index[id] = w.order.PushBack(id)
	for w.order.Len() > w.capacity {
		oldest := w.order.Front()
		w.order.Remove(oldest)
		delete(w.index, oldest.Value.(string))
	}
	return true
}

// Contains reports whether id is in the window.
func (w *Window) Contains(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.index[id]
	return ok
}

// IDs returns the ids oldest first.
func (w *Window) IDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, w.order.Len())
	for el := w.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(string))
	}
	return out
}

// Len returns the number of ids held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.order.Len()
}

// Capacity returns the maximum number of ids held.
func (w *Window) Capacity() int { return w.capacity }

// Reset empties the window.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.order.Init()
	w.index = make(map[string]*list.Element)
}

// SeenAndRecord implements Deduper.
func (w *Window) SeenAndRecord(_ context.Context, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.add(id)
}

// Size implements Deduper.
func (w *Window) Size() int64 { return int64(w.Len()) }
