// Package poller drives the background refresh of a creditpulse
// synchronizer and provides the HTTP fetcher it refreshes from.
//
// The main components are:
//
//   - [Scheduler]: Fires a trigger on a fixed period until stopped
//   - [Client]: HTTP fetcher with rate limiting, size limits and JSON/CBOR decoding
//
// Users of the creditpulse library normally construct a [Client] and pass it
// to creditpulse.NewSynchronizer; the scheduler is managed internally.
package poller
