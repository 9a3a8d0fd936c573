// Package store keeps the latest analytics snapshot and publishes updates
// to connected dashboard clients.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: JSON representation of the synchronizer state
//
// The store is designed for concurrent access with proper synchronization.
// Subscribers always converge on the newest snapshot; intermediate ones may
// be skipped but an update never blocks on a slow reader.
package store
