package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/resourceboard/internal/kv"
)

// DefaultKey is the key-value slot used when none is configured.
const DefaultKey = "resourceboard.resources"

// subscriberBuffer is the channel capacity for each subscriber.
const subscriberBuffer = 100

// ResourceStore is the [Store] implementation backed by a [kv.Store] slot.
//
// Entries are kept in insertion order, which is also the display order. The
// write lock is held across persistence so that each add or remove is a
// complete, non-interleaved update of the persisted collection. A mutation
// whose persistence fails is rolled back.
//
// Subscribers receive updates via buffered channels (buffer size 100), in the
// order the mutations were applied. Updates are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the entire system.
type ResourceStore struct {
	mu      sync.RWMutex
	entries []Entry
	backend kv.Store
	key     string
	logger  *slog.Logger
	newID   func() string

	subscribers map[chan Event]struct{}
	subMu       sync.RWMutex
}

// Open creates a [ResourceStore] and hydrates it from the slot named key.
//
// An absent slot yields an empty store. So does a slot holding data that
// cannot be decoded; the problem is logged and the store starts empty. Read
// errors from the backend are returned, since starting empty would overwrite
// the durable collection on the next mutation.
func Open(ctx context.Context, backend kv.Store, key string, logger *slog.Logger) (*ResourceStore, error) {
	if backend == nil {
		return nil, errors.New("store: backend is required")
	}
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ResourceStore{
		entries:     []Entry{},
		backend:     backend,
		key:         key,
		logger:      logger,
		newID:       uuid.NewString,
		subscribers: make(map[chan Event]struct{}),
	}

	data, err := backend.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("store: failed to load resources: %w", err)
	}

	s.entries = decodeEntries(data, logger)
	return s, nil
}

// NewMemoryStore returns an empty store persisted to process memory only.
func NewMemoryStore() *ResourceStore {
	// hydrating from a fresh memory backend cannot fail
	s, _ := Open(context.Background(), kv.NewMemoryStore(), DefaultKey, slog.Default())
	return s
}

// decodeEntries parses the persisted collection. Corrupt documents and
// invalid records are skipped with a warning.
func decodeEntries(data []byte, logger *slog.Logger) []Entry {
	var resources []Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		logger.Warn("persisted resources are unreadable, starting empty", "error", err)
		return []Entry{}
	}

	entries := make([]Entry, 0, len(resources))
	seen := make(map[string]struct{}, len(resources))
	for i, r := range resources {
		if r.ID == "" || strings.TrimSpace(r.URL) == "" {
			logger.Warn("skipping invalid persisted resource", "index", i, "id", r.ID)
			continue
		}
		if _, dup := seen[r.ID]; dup {
			logger.Warn("skipping duplicate persisted resource", "index", i, "id", r.ID)
			continue
		}
		seen[r.ID] = struct{}{}
		entries = append(entries, Entry{Resource: r, Observation: Observation{State: StatePending}})
	}
	return entries
}

// persistLocked writes entries to the backend. Caller must hold mu.
func (s *ResourceStore) persistLocked(ctx context.Context, entries []Entry) error {
	resources := make([]Resource, len(entries))
	for i, e := range entries {
		resources[i] = e.Resource
	}

	data, err := json.Marshal(resources)
	if err != nil {
		return fmt.Errorf("store: failed to encode resources: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("store: failed to persist resources: %w", err)
	}
	return nil
}

// Add registers a new resource with a fresh id in the pending state.
func (s *ResourceStore) Add(ctx context.Context, name, url string) (Resource, error) {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if url == "" {
		return Resource{}, fmt.Errorf("%w: url is required", ErrInvalidResource)
	}
	if name == "" {
		return Resource{}, fmt.Errorf("%w: name is required", ErrInvalidResource)
	}

	entry := Entry{
		Resource:    Resource{ID: s.newID(), Name: name, URL: url},
		Observation: Observation{State: StatePending},
	}

	s.mu.Lock()
	next := make([]Entry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	next = append(next, entry)
	if err := s.persistLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return Resource{}, err
	}
	s.entries = next
	s.notifySubscribers(Event{Type: EventAdded, Entry: entry})
	s.mu.Unlock()

	return entry.Resource, nil
}

// Remove deletes the resource with id. Unknown ids are a no-op.
func (s *ResourceStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	removed := s.entries[idx]
	next := make([]Entry, 0, len(s.entries)-1)
	next = append(next, s.entries[:idx]...)
	next = append(next, s.entries[idx+1:]...)
	if err := s.persistLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.entries = next
	s.notifySubscribers(Event{Type: EventRemoved, Entry: removed})
	s.mu.Unlock()

	return nil
}

// Get returns the entry for id.
func (s *ResourceStore) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexLocked(id); idx >= 0 {
		return s.entries[idx], true
	}
	return Entry{}, false
}

// List returns a snapshot of all entries in insertion order.
//
// The returned slice is a copy; modifications do not affect the store.
func (s *ResourceStore) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// RecordObservation replaces the observation for id. A resource deleted while
// its fetch was in flight stays deleted: the late observation is dropped.
func (s *ResourceStore) RecordObservation(id string, obs Observation) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	// replace the slice element, never mutate the shared backing array seen by List copies
	next := make([]Entry, len(s.entries))
	copy(next, s.entries)
	next[idx].Observation = obs
	s.entries = next
	s.notifySubscribers(Event{Type: EventObserved, Entry: next[idx]})
	s.mu.Unlock()

	return true
}

func (s *ResourceStore) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.Resource.ID == id {
			return i
		}
	}
	return -1
}

// Subscribe creates a new subscription and returns a channel for receiving events.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new events are dropped for this subscriber.
//
// Caller must call [ResourceStore.Unsubscribe] when done to prevent resource leaks.
func (s *ResourceStore) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (s *ResourceStore) Unsubscribe(ch <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for subCh := range s.subscribers {
		if subCh == ch {
			delete(s.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the event to all active subscribers without blocking.
// Callers hold mu so that subscribers see events in mutation order; an
// observed event can never trail the removed event for the same id.
func (s *ResourceStore) notifySubscribers(ev Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop the message
		}
	}
}
