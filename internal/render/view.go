package render

import (
	"time"

	"github.com/jpalmerr/resourceboard/internal/classify"
	"github.com/jpalmerr/resourceboard/internal/store"
)

// Badge is the short status label shown next to a resource name.
type Badge string

const (
	BadgePending Badge = "Pending"
	BadgeSyncing Badge = "Syncing"
	BadgeLive    Badge = "Live"
	BadgeFailed  Badge = "Failed"
)

// ViewOptions controls how an entry is turned into a [ResourceView].
type ViewOptions struct {
	// Syncing is true while a fetch for the resource is in flight.
	Syncing bool

	// Location is used for date cells. Nil means UTC.
	Location *time.Location
}

// ResourceView is the read model served to the dashboard and API clients.
type ResourceView struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	URL    string       `json:"url"`
	Health store.Health `json:"health"`
	Badge  Badge        `json:"badge"`

	Syncing bool `json:"syncing"`

	// Kind is empty until the first successful fetch.
	Kind      classify.Kind `json:"kind,omitempty"`
	Columns   []string      `json:"columns,omitempty"`
	Rows      []Row         `json:"rows,omitempty"`
	Tiles     []MediaTile   `json:"tiles,omitempty"`
	ItemCount int           `json:"item_count"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	LatencyMs int64      `json:"latency_ms"`
}

// BuildView renders an entry. Success payloads are classified and rendered
// with the table or media strategy; failures carry their error text.
func BuildView(entry store.Entry, opts ViewOptions) ResourceView {
	obs := entry.Observation
	view := ResourceView{
		ID:        entry.Resource.ID,
		Name:      entry.Resource.Name,
		URL:       entry.Resource.URL,
		Health:    obs.Health(),
		Syncing:   opts.Syncing,
		LatencyMs: obs.LatencyMs,
	}
	view.Badge = badge(view.Health, opts.Syncing)

	if !obs.FetchedAt.IsZero() {
		fetchedAt := obs.FetchedAt
		view.FetchedAt = &fetchedAt
	}

	switch obs.State {
	case store.StateSuccess:
		payload := classify.Classify(obs.Payload)
		view.Kind = payload.Kind
		view.ItemCount = len(payload.Items)
		switch payload.Kind {
		case classify.KindTabular:
			view.Columns = payload.Columns
			view.Rows = Table(payload.Items, payload.Columns, opts.Location)
		case classify.KindMedia:
			view.Tiles = Media(payload.Items, entry.Resource.URL)
		}
	case store.StateFailure:
		if obs.Failure != nil {
			view.Error = obs.Failure.Message
			view.ErrorKind = obs.Failure.Kind
		}
	}

	return view
}

// badge picks the label. Failed outranks Syncing.
func badge(h store.Health, syncing bool) Badge {
	switch {
	case h == store.HealthUnhealthy:
		return BadgeFailed
	case syncing:
		return BadgeSyncing
	case h == store.HealthPending:
		return BadgePending
	default:
		return BadgeLive
	}
}
