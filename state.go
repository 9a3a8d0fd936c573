package creditpulse

import "time"

// State is the consumer-visible snapshot of a [Synchronizer].
//
// State is derived from the cached entry, the in-flight status and the
// staleness timer; it is a copy and never changes after it is returned.
type State[T any] struct {
	// Data is the last validated value, or nil if no fetch has succeeded yet.
	Data *T

	// Loading is true while a request is current and there is no cached data,
	// or while a blocking refresh is running.
	Loading bool

	// Err is the terminal error of the last fetch cycle when no cached data
	// exists. Failures with cached data are logged, not reported here.
	Err error

	// IsStale is true once the cache TTL has elapsed since the last
	// successful write. It is only ever true when Data is non-nil.
	IsStale bool

	// FetchedAt is when Data was fetched. Zero when Data is nil.
	FetchedAt time.Time
}

// HasData reports whether a validated value is available.
func (s State[T]) HasData() bool {
	return s.Data != nil
}

// cloner is implemented by resource types that hold slices or pointers and
// can produce an independent copy of themselves.
type cloner[T any] interface {
	Clone() T
}
