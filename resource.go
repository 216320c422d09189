package resourceboard

import (
	"context"
	"time"

	"github.com/jpalmerr/resourceboard/internal/kv"
)

// Resource is a registered external REST endpoint.
//
// IDs are generated on registration and never change. URLs need not be
// unique; the same URL may be registered under several names.
type Resource struct {
	ID   string
	Name string
	URL  string
}

// Seed is a resource registered at construction when storage holds none.
type Seed struct {
	Name string
	URL  string
}

// Observation is the outcome of one completed fetch, delivered to
// callbacks registered with [WithObservationCallback].
type Observation struct {
	// Resource is the polled resource.
	Resource Resource

	// Health is the state the resource moved to.
	Health Health

	// StatusCode is the upstream HTTP status, or 0 when no response arrived.
	StatusCode int

	Latency   time.Duration
	FetchedAt time.Time

	// Payload is the JSON document returned by a successful fetch, and nil
	// after a failure.
	Payload []byte

	// ErrorKind is one of the Error* constants when the fetch failed.
	ErrorKind string

	// Err describes the failure; nil on success.
	Err error
}

// Storage persists the resource list under a single key.
//
// Implementations must be safe for concurrent use. Get returns [ErrNotFound]
// for keys that were never written. A Storage passed to [WithStorage] is
// closed by [Board.Close].
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// ErrNotFound is returned by [Storage.Get] for absent keys.
var ErrNotFound = kv.ErrNotFound
