package store

import (
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive snapshots via channels with a buffer of one. A
// pending snapshot that has not been read yet is replaced by the newer one,
// so a slow subscriber always ends up on the latest state and never blocks
// the update path.
type MemoryStore struct {
	mu      sync.RWMutex
	current Snapshot

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Update stores snap with the next version and notifies all subscribers.
func (m *MemoryStore) Update(snap Snapshot) Snapshot {
	m.mu.Lock()
	snap.Version = m.current.Version + 1
	m.current = snap
	m.mu.Unlock()

	m.notifySubscribers(snap)
	return snap
}

// Get returns the latest snapshot.
func (m *MemoryStore) Get() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe creates a new subscription and returns a channel for receiving
// snapshots.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// snapshots will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return len(m.subscribers)
}

// notifySubscribers hands snap to every subscriber, replacing any snapshot
// still pending in its buffer.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		// buffer full: drop the stale pending snapshot
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
