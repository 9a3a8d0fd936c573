// Package server provides the HTTP server for the analytics dashboard and API.
//
// This package is internal to creditpulse and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: "/api/state" for the current snapshot, "/api/refetch" to force a refresh
//   - Server-Sent Events: Real-time snapshots at "/api/sse"
//   - WebSocket: Real-time snapshots and refetch requests at "/api/ws"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
