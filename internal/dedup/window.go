// Package dedup provides the processed-event window that gives the
// scheduler at-most-once semantics over a rolling horizon.
package dedup

import (
	"container/list"
	"context"
	"sync"
)

// Window is a bounded record of already-processed event IDs.
type Window interface {
	// Seen reports whether the id is present in the window.
	Seen(ctx context.Context, id string) (bool, error)
	// Add records the id, evicting the oldest entries once capacity
	// is exceeded.
	Add(ctx context.Context, id string) error
}

// DefaultCapacity bounds the in-memory window when no capacity is
// configured.
const DefaultCapacity = 10000

// LRUWindow is an in-memory Window with O(1) membership and strict
// oldest-first eviction. At-most-once holds only within the retained
// window and does not survive restarts; use RedisWindow for that.
type LRUWindow struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

// NewLRUWindow creates a window retaining up to capacity event IDs.
func NewLRUWindow(capacity int) *LRUWindow {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRUWindow{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Seen reports whether the id is in the window.
func (w *LRUWindow) Seen(_ context.Context, id string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entries[id]
	return ok, nil
}

// Add records the id. Re-adding an existing id refreshes its position
// so frequently seen events stay retained longest.
func (w *LRUWindow) Add(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if elem, ok := w.entries[id]; ok {
		w.order.MoveToBack(elem)
		return nil
	}

	w.entries[id] = w.order.PushBack(id)

	for len(w.entries) > w.capacity {
		oldest := w.order.Front()
		w.order.Remove(oldest)
		delete(w.entries, oldest.Value.(string))
	}
	return nil
}

// Len returns the number of retained IDs.
func (w *LRUWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
