package dedup

import (
	"log"
	"sync"
)

// DefaultCapacity bounds the tracker when no capacity is configured.
const DefaultCapacity = 1000

// Tracker is a bounded set of already-admitted tweet ids with insertion order
// preserved for eviction. When an admit would push the set past capacity, the
// oldest half is evicted in one step.
//
// Trade-off: an id evicted from the window can be re-admitted later. That
// only costs one redundant scoring call; the engagement store's idempotent
// marks keep state correct regardless.
type Tracker struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
}

// NewTracker creates a tracker bounded to capacity entries. Non-positive
// capacities fall back to DefaultCapacity.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Admit records id and returns true iff it was not already present.
// Eviction happens synchronously inside Admit before the new id is stored.
func (t *Tracker) Admit(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[id]; ok {
		return false
	}

	if len(t.order) >= t.capacity {
		t.evictOldestHalf()
	}

	t.seen[id] = struct{}{}
	t.order = append(t.order, id)
	return true
}

// Size returns the number of ids currently tracked.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// evictOldestHalf drops the oldest capacity/2 entries by insertion order.
// Caller holds the lock.
func (t *Tracker) evictOldestHalf() {
	n := t.capacity / 2
	if n < 1 {
		n = 1
	}
	if n > len(t.order) {
		n = len(t.order)
	}

	for _, id := range t.order[:n] {
		delete(t.seen, id)
	}
	t.order = append(t.order[:0], t.order[n:]...)

	log.Printf("[DEDUP] Evicted %d oldest entries (%d remain)", n, len(t.order))
}
