// Package store provides keyed registries of live entities with
// exclusive-use handles. Every entry carries its own lock, so operations on
// different ids never contend; all users of one id are fully serialized.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrHandleReleased is returned when a handle is used after Release or
	// Destroy.
	ErrHandleReleased = errors.New("store: handle used after release")

	// ErrLockUnavailable is returned when an entry keeps being destroyed
	// underneath a waiting acquirer.
	ErrLockUnavailable = errors.New("store: entity lock unavailable")
)

// maxAcquireAttempts bounds retries when the awaited entry is destroyed
// before the lock is obtained.
const maxAcquireAttempts = 5

// entry is one tracked entity. The semaphore has capacity one; holding its
// slot is owning the entity.
type entry[T any] struct {
	sem  chan struct{}
	item *T
	dead bool
}

// Store is a registry of live entities keyed by id.
type Store[K comparable, T any] struct {
	mu      sync.Mutex
	entries map[K]*entry[T]
	name    string
}

// NewStore creates an empty store. The name appears in errors and logs.
func NewStore[K comparable, T any](name string) *Store[K, T] {
	return &Store[K, T]{
		entries: make(map[K]*entry[T]),
		name:    name,
	}
}

// GetForUse blocks until the entry's lock is held and returns the handle
// guarding it. When no entry exists, a placeholder is installed so that
// concurrent callers serialize; with allowCreate the caller is expected to
// populate it via SetItem, otherwise the handle reports a nil Item and the
// placeholder is pruned on release.
//
// Acquisition observes ctx: a caller cancelled while waiting gives up
// without side effects.
func (s *Store[K, T]) GetForUse(ctx context.Context, id K, allowCreate bool) (*Handle[K, T], error) {
	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		s.mu.Lock()
		ent, ok := s.entries[id]
		if !ok {
			ent = &entry[T]{sem: make(chan struct{}, 1)}
			s.entries[id] = ent
		}
		s.mu.Unlock()

		select {
		case ent.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if ent.dead {
			// Destroyed while we waited; take a fresh entry.
			<-ent.sem
			continue
		}
		return &Handle[K, T]{store: s, id: id, ent: ent}, nil
	}
	return nil, fmt.Errorf("%w: %s %v", ErrLockUnavailable, s.name, id)
}

// Clear drops every entry. Intended for test fixtures only: it does not wait
// for held handles.
func (s *Store[K, T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ent := range s.entries {
		ent.dead = true
		delete(s.entries, id)
	}
}

// Count returns the number of populated entries.
func (s *Store[K, T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ent := range s.entries {
		if ent.item != nil {
			n++
		}
	}
	return n
}

// IDs returns the ids of populated entries, in no particular order.
func (s *Store[K, T]) IDs() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]K, 0, len(s.entries))
	for id, ent := range s.entries {
		if ent.item != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// remove unmaps ent if the map still points at it.
func (s *Store[K, T]) remove(id K, ent *entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[id]; ok && cur == ent {
		delete(s.entries, id)
	}
}

// Handle is a scoped exclusive-use token for one entry. It must not outlive
// a single logical operation; Release is safe to call on every exit path.
type Handle[K comparable, T any] struct {
	store *Store[K, T]
	id    K
	ent   *entry[T]
	done  bool
}

// ID returns the entry's key.
func (h *Handle[K, T]) ID() K {
	return h.id
}

// Item returns the entity, or nil when the entry is absent or the handle has
// been released or destroyed.
func (h *Handle[K, T]) Item() *T {
	if h.done {
		return nil
	}
	return h.ent.item
}

// SetItem populates the entry's slot.
func (h *Handle[K, T]) SetItem(item *T) error {
	if h.done {
		return ErrHandleReleased
	}
	h.ent.item = item
	return nil
}

// Release unlocks the entry. An entry still empty at release time is pruned,
// so a failed create leaves no trace. Idempotent.
func (h *Handle[K, T]) Release() {
	if h.done {
		return
	}
	h.done = true
	if h.ent.item == nil {
		h.ent.dead = true
		h.store.remove(h.id, h.ent)
	}
	<-h.ent.sem
}

// Destroy removes the entry so subsequent GetForUse sees it absent, then
// unlocks. Idempotent with Release.
func (h *Handle[K, T]) Destroy() {
	if h.done {
		return
	}
	h.done = true
	h.ent.dead = true
	h.ent.item = nil
	h.store.remove(h.id, h.ent)
	<-h.ent.sem
}
