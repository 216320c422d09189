package resourceboard

import "github.com/jpalmerr/resourceboard/internal/store"

// Health represents the polling state of a resource.
//
// Every resource starts [HealthPending] and moves to [HealthHealthy] or
// [HealthUnhealthy] after its first completed fetch. From then on it moves
// between those two on every outcome. There is no backoff and no terminal
// state; a resource is polled until it is removed.
type Health string

const (
	// HealthPending indicates the resource has not completed a fetch yet.
	HealthPending Health = Health(store.HealthPending)

	// HealthHealthy indicates the latest fetch returned a JSON payload.
	HealthHealthy Health = Health(store.HealthHealthy)

	// HealthUnhealthy indicates the latest fetch failed.
	HealthUnhealthy Health = Health(store.HealthUnhealthy)
)

// String returns the string representation of the health state.
// This implements the fmt.Stringer interface.
func (h Health) String() string {
	return string(h)
}

// Fetch error kinds reported in [Observation.ErrorKind].
const (
	ErrorConfiguration    = "configuration"
	ErrorConnectionFailed = "connection_failed"
	ErrorHTTPStatus       = "http_status"
	ErrorInvalidPayload   = "invalid_payload"
)
