// Package server provides the HTTP server for the ResourceBoard dashboard and API.
//
// This package is internal to ResourceBoard and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: resource management under "/api/resources" and ad-hoc
//     fetches at "/api/test-resource"
//   - Server-Sent Events: Real-time updates at "/api/sse"
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the resourceboard library should not need to interact with this
// package directly. The server is started automatically by [resourceboard.Board.Start].
package server
