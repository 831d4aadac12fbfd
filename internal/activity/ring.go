// Package activity holds the engine's bounded in-memory sinks: the work
// log and the simulated analytics event buffer.
package activity

import "sync"

// Ring is a bounded, append-only buffer that discards its oldest entries
// once full. It is safe for concurrent use.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	limit int
	total int64
}

// NewRing creates a ring holding at most limit items (minimum 1).
func NewRing[T any](limit int) *Ring[T] {
	if limit < 1 {
		limit = 1
	}
	return &Ring[T]{items: make([]T, 0, limit), limit: limit}
}

// Append adds an item, dropping the oldest when the ring is full.
func (r *Ring[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == r.limit {
		copy(r.items, r.items[1:])
		r.items = r.items[:r.limit-1]
	}
	r.items = append(r.items, item)
	r.total++
}

// Snapshot returns the retained items, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]T(nil), r.items...)
}

// Recent returns up to n of the newest items, newest first.
func (r *Ring[T]) Recent(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.items) {
		n = len(r.items)
	}
	out := make([]T, 0, n)
	for i := len(r.items) - 1; i >= len(r.items)-n; i-- {
		out = append(out, r.items[i])
	}
	return out
}

// Len returns the number of retained items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Total returns the number of items ever appended.
func (r *Ring[T]) Total() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Limit returns the retention bound.
func (r *Ring[T]) Limit() int { return r.limit }
