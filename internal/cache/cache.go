package cache

import (
	"sync/atomic"
	"time"
)

// Entry is a validated value together with the time it was fetched.
//
// Entries are never mutated after they are stored. Callers that receive an
// Entry must treat Value as read-only.
type Entry[T any] struct {
	// Value is the validated resource.
	Value T

	// FetchedAt is the time the fetch that produced Value completed.
	FetchedAt time.Time
}

// Age returns how long ago the entry was fetched, relative to now.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Store is the single authoritative holder of the last validated value.
//
// Store has one writer role (the synchronizer accepting a fetch) and any
// number of readers. Reads never block and never wait on a write in progress.
// The zero value is an empty store ready for use.
type Store[T any] struct {
	entry atomic.Pointer[Entry[T]]
}

// New creates an empty [Store].
func New[T any]() *Store[T] {
	return &Store[T]{}
}

// Read returns the current entry. The boolean is false when nothing has been
// written yet.
func (s *Store[T]) Read() (Entry[T], bool) {
	e := s.entry.Load()
	if e == nil {
		return Entry[T]{}, false
	}
	return *e, true
}

// Write replaces the current entry with value fetched at now.
func (s *Store[T]) Write(value T, now time.Time) Entry[T] {
	e := &Entry[T]{Value: value, FetchedAt: now}
	s.entry.Store(e)
	return *e
}

// IsFresh reports whether an entry exists and is younger than ttl at now.
func (s *Store[T]) IsFresh(now time.Time, ttl time.Duration) bool {
	e := s.entry.Load()
	if e == nil {
		return false
	}
	return now.Sub(e.FetchedAt) < ttl
}
