// Package pressure implements memory-pressure fan-out for animated images:
// a process-wide registry of weak, non-owning handles to live instances, and
// a per-instance backoff state machine that temporarily shrinks the frame
// cache and recovers in bounded steps.
package pressure

import (
	"sync"
	"weak"

	"github.com/google/uuid"
)

// Registry is a process-wide set of weak handles to live targets. Entries
// never extend a target's lifetime: a collected target simply stops showing
// up in fan-out, and runtime cleanups (registered by the owner) remove the
// stale entry eagerly.
//
// Registry is safe for concurrent use.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[uuid.UUID]weak.Pointer[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[uuid.UUID]weak.Pointer[T])}
}

// Add registers target under id. The registry holds only a weak pointer.
func (r *Registry[T]) Add(id uuid.UUID, target *T) {
	wp := weak.Make(target)
	r.mu.Lock()
	r.entries[id] = wp
	r.mu.Unlock()
}

// Remove drops the entry for id, if present.
func (r *Registry[T]) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Notify calls fn for every still-live target and returns how many were
// notified. The snapshot is taken under the registry lock; fn runs outside
// it, so handlers may freely call back into the registry. Entries whose
// target has been collected are pruned.
func (r *Registry[T]) Notify(fn func(*T)) int {
	r.mu.Lock()
	snapshot := make(map[uuid.UUID]weak.Pointer[T], len(r.entries))
	for id, wp := range r.entries {
		snapshot[id] = wp
	}
	r.mu.Unlock()

	notified := 0
	for id, wp := range snapshot {
		target := wp.Value()
		if target == nil {
			r.Remove(id)
			continue
		}
		fn(target)
		notified++
	}
	return notified
}

// Len returns the number of registered entries, live or not.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
