package store

import (
	"context"
	"errors"
	"time"

	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
)

// ErrInvalidResource is returned by Add when a required field is missing.
var ErrInvalidResource = errors.New("invalid resource configuration")

// Resource is the configuration of a registered external endpoint.
//
// It is the only part of an entry that is persisted. IDs are unique within a
// store; URLs are not.
type Resource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// State is the outcome recorded by the most recent poll.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Health is the user-facing health of a resource, derived from its State.
type Health string

const (
	HealthPending   Health = "pending"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
)

// Failure describes why the most recent poll failed.
type Failure struct {
	// Kind is one of the fetch error kinds (e.g. "http_status").
	Kind string `json:"kind"`

	// StatusCode is the upstream HTTP status for http_status failures.
	StatusCode int `json:"status_code,omitempty"`

	// Message is the human-readable error, with upstream bodies truncated.
	Message string `json:"message"`
}

// Observation is the latest poll outcome for a resource. Each new observation
// replaces the previous one entirely.
type Observation struct {
	State State `json:"state"`

	// Payload holds the parsed response for StateSuccess and is null otherwise.
	Payload jsonvalue.Value `json:"payload"`

	// Failure is set for StateFailure only.
	Failure *Failure `json:"failure,omitempty"`

	// FetchedAt is zero while the resource is pending.
	FetchedAt time.Time `json:"fetched_at"`

	LatencyMs int64 `json:"latency_ms"`
}

// Health maps the observation state onto the resource health state machine.
func (o Observation) Health() Health {
	switch o.State {
	case StateSuccess:
		return HealthHealthy
	case StateFailure:
		return HealthUnhealthy
	default:
		return HealthPending
	}
}

// Entry pairs a resource with its current observation.
type Entry struct {
	Resource    Resource    `json:"resource"`
	Observation Observation `json:"observation"`
}

// EventType identifies a store change.
type EventType string

const (
	EventAdded    EventType = "added"
	EventRemoved  EventType = "removed"
	EventObserved EventType = "observed"
)

// Event is published to subscribers after every change.
type Event struct {
	Type  EventType `json:"type"`
	Entry Entry     `json:"entry"`
}

// Store defines resource storage with subscriptions.
//
// Store implementations must be safe for concurrent access. Every mutation is
// applied atomically with respect to other mutations.
type Store interface {
	// Add registers a resource in the pending state and persists the
	// collection. Name and url must be non-empty.
	Add(ctx context.Context, name, url string) (Resource, error)

	// Remove deletes a resource and its observation. Removing an unknown id
	// is a no-op.
	Remove(ctx context.Context, id string) error

	// Get returns the entry for id.
	Get(id string) (Entry, bool)

	// List returns a snapshot of all entries in insertion order.
	List() []Entry

	// RecordObservation replaces the observation for id. It reports false and
	// does nothing when id no longer exists.
	RecordObservation(id string, obs Observation) bool

	// Subscribe returns a channel that receives change events.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Event

	// Unsubscribe removes a subscription and closes the channel.
	Unsubscribe(ch <-chan Event)
}
