// Package poller fetches resources over HTTP and schedules periodic polling.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with timeout and size limits that turns a
//     response into a typed [Result]
//   - [Scheduler]: One task goroutine per resource, bounded by a shared
//     concurrency limit
//   - [PollResult]: Result of fetching a single resource
//   - [FetchError]: Classified failure (configuration, connection_failed,
//     http_status, invalid_payload)
//
// Users of the resourceboard library should not need to interact with this
// package directly. Configuration is done through the main resourceboard package.
package poller
