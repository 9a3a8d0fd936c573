// Package creditpulse keeps a periodically changing remote resource
// available to a dashboard with low latency, bounded staleness and
// resilience to transient failures.
//
// A [Synchronizer] owns the whole pipeline for one resource: it fetches
// the raw payload through a [Fetcher], gates it through a [Validator],
// caches the accepted value, retries failed fetches on a linear ramp, flags
// the value as stale once the cache TTL passes, and refreshes it in the
// background while consumers are subscribed. Consumers only ever see a
// value that passed validation.
//
// # Quick Start
//
//	client := poller.NewClient("https://api.example.com/analytics/dashboard")
//	sync, err := creditpulse.NewSynchronizer(client, analytics.Validate,
//	    creditpulse.WithCacheTTL(30*time.Second),
//	    creditpulse.WithPollInterval(time.Minute),
//	)
//	if err != nil {
//	    return err
//	}
//	defer sync.Close()
//
//	h, _ := sync.Subscribe()
//	defer h.Unsubscribe()
//
//	st := sync.GetState() // {Data, Loading, Err, IsStale}
//
// # Refresh Semantics
//
// Every fetch belongs to a cycle: the first attempt plus up to
// [DefaultMaxRetries] retries, the n-th retry waiting n times the base
// delay. A cycle starts on the first subscription, on every poll tick and on
// [Synchronizer.Refetch]. Starting a cycle supersedes the previous one; a
// superseded request is cancelled and its result dropped even if it
// arrives later, so the cache never regresses to older data.
//
// While a value is cached, refreshes run in the background: Loading stays
// false and a failed cycle is logged, not surfaced. Without a cached value
// Loading is raised, and a cycle that exhausts its retries sets Err.
//
// # Errors
//
// Failures are classified as [TransportError], [ValidationError] or
// [TimeoutError]; [ErrorKind] returns a short name for display. All three
// are retried identically.
//
// # Architecture
//
// The implementation is split into internal packages:
//
//   - internal/cache: atomic holder of the last validated value
//   - internal/retry: linear retry ramp
//   - internal/poller: poll scheduler and the HTTP fetcher
//   - internal/store: snapshot store with pub/sub for live clients
//   - internal/server: REST, SSE and WebSocket API plus the dashboard page
//   - internal/tui: terminal dashboard
//   - internal/app: wiring used by the creditpulse command
//
// The analytics package defines the dashboard resource and its validator.
package creditpulse
