package store

import (
	"time"

	"github.com/jpalmerr/creditpulse/analytics"
)

// ErrorInfo describes a user-visible fetch failure.
type ErrorInfo struct {
	// Kind is "transport", "validation" or "timeout".
	Kind string `json:"kind"`

	// Message is the human-readable error text.
	Message string `json:"message"`
}

// Snapshot is the consumer-visible state of the analytics synchronizer,
// shaped for JSON serialization (used by the REST API, SSE and WebSocket).
type Snapshot struct {
	// Data is the last validated dashboard, nil until the first successful fetch.
	Data *analytics.Dashboard `json:"data"`

	// Loading is true while a blocking fetch is running.
	Loading bool `json:"loading"`

	// Error is set when a fetch cycle failed with nothing cached.
	Error *ErrorInfo `json:"error"`

	// IsStale is true once Data is older than the cache TTL.
	IsStale bool `json:"is_stale"`

	// FetchedAt is when Data was fetched; nil without data.
	FetchedAt *time.Time `json:"fetched_at"`

	// MonthlyProgressPercent is the emissions progress towards the monthly
	// target, 0-100.
	MonthlyProgressPercent float64 `json:"monthly_progress_percent"`

	// Version increases by one on every update.
	Version uint64 `json:"version"`
}

// Store holds the latest [Snapshot] and publishes every update.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Update replaces the stored snapshot, stamps its Version and notifies
	// all subscribers. It returns the stored snapshot.
	Update(snap Snapshot) Snapshot

	// Get returns the latest snapshot. Before the first Update it returns
	// the zero Snapshot.
	Get() Snapshot

	// Subscribe returns a channel that receives snapshots. Only the newest
	// pending snapshot is kept; slow consumers skip intermediate ones.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
