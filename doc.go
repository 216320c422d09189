// Package resourceboard provides an embeddable dashboard that polls arbitrary
// REST resources and renders their JSON responses without knowing the
// response schema in advance.
//
// ResourceBoard is designed as an SDK-first library. An operator registers
// resources (a name and a URL); each is fetched immediately and then on a
// fixed interval, and its latest outcome is shown live in the dashboard.
//
// # Quick Start
//
// Seed a resource and start the dashboard with graceful shutdown:
//
//	b, _ := resourceboard.New(
//	    resourceboard.WithSeed("Things", "http://localhost:1337/api/things"),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	b.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// ResourceBoard uses the functional options pattern for configuration:
//
//	b, err := resourceboard.New(
//	    resourceboard.WithPollingInterval(30 * time.Second),
//	    resourceboard.WithFetchTimeout(5 * time.Second),
//	    resourceboard.WithPort(9090),
//	    resourceboard.WithFileStorage("/var/lib/resourceboard"),
//	)
//
// # Presentation
//
// Every successful payload is classified by shape. A `{"data": ...}`
// envelope is unwrapped once, and `{"id", "attributes": {...}}` records are
// flattened. Collections of uploaded files (records carrying a MIME type and
// a URL) are shown as a media gallery; any other records become table rows
// with columns inferred from the first record. Payloads with nothing to show
// are reported as empty.
//
// # Health
//
// A resource is pending until its first fetch completes, then healthy or
// unhealthy after every outcome. Failures are classified as configuration,
// connection_failed, http_status or invalid_payload errors; a failure
// replaces the last good payload. One resource never affects another.
//
// # Architecture
//
// ResourceBoard consists of several internal packages (under internal/):
//
//   - internal/poller: Pooled HTTP client and per-resource polling tasks
//   - internal/store: Resource list with pub/sub, persisted through internal/kv
//   - internal/classify: Shape classification of JSON payloads
//   - internal/render: Table and media renderers and the dashboard read model
//   - internal/server: HTTP API, Server-Sent Events and the embedded dashboard
//   - internal/metrics: Prometheus collectors served at /metrics
//
// The internal packages are not part of the public API and may change
// without notice.
package resourceboard
