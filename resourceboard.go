package resourceboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/resourceboard/dashboard"
	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
	"github.com/jpalmerr/resourceboard/internal/kv"
	"github.com/jpalmerr/resourceboard/internal/metrics"
	"github.com/jpalmerr/resourceboard/internal/poller"
	"github.com/jpalmerr/resourceboard/internal/render"
	"github.com/jpalmerr/resourceboard/internal/server"
	"github.com/jpalmerr/resourceboard/internal/store"
)

const (
	defaultPort = 8080

	// storageTimeout bounds opening and hydrating storage in New.
	storageTimeout = 10 * time.Second
)

// Board is the main orchestrator for resource polling and dashboard serving.
//
// Board owns the resource store, the polling scheduler and the HTTP server.
// Fetch outcomes flow from the scheduler through a single consumer that
// records them, so the observations of one resource are applied in
// completion order. It is created using [New] with functional options and
// started with [Board.Start].
//
// The typical lifecycle is:
//
//	b, err := resourceboard.New(resourceboard.WithSeed("Things", url))
//	if err != nil {
//	    slog.Error("failed to create resourceboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	b.Start(ctx) // blocks until context cancelled
//
// Resources may be added and removed at any time, before or after Start.
// All methods are safe for concurrent use.
type Board struct {
	title           string
	port            int
	pollingInterval time.Duration
	fetchTimeout    time.Duration
	location        *time.Location
	logger          *slog.Logger
	callbacks       []func(Observation)

	backend   kv.Store
	store     *store.ResourceStore
	client    *poller.Client
	scheduler *poller.Scheduler
	metrics   *metrics.Metrics
	gaugeMu   sync.Mutex

	mu        sync.Mutex
	started   bool
	closed    bool
	consumer  sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates a new [Board] instance with the given options.
//
// New opens the configured storage and loads the persisted resources. When
// storage holds none, the resources given with [WithSeed] are registered.
// Defaults:
//   - Polling interval: 10 seconds
//   - Fetch timeout: 10 seconds
//   - Port: 8080
//   - Max concurrency: 10
//   - Storage: in memory
//
// Returns an error if an option is invalid or storage cannot be opened.
//
// Example:
//
//	b, err := resourceboard.New(
//	    resourceboard.WithFileStorage("/var/lib/resourceboard"),
//	    resourceboard.WithPollingInterval(30 * time.Second),
//	    resourceboard.WithPort(9090),
//	)
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		pollingInterval: poller.DefaultInterval,
		fetchTimeout:    poller.DefaultTimeout,
		port:            defaultPort,
		maxConcurrency:  poller.DefaultMaxConcurrency,
		storageKey:      store.DefaultKey,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	location := cfg.location
	if location == nil {
		location = time.Local
	}

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	backend, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resources, err := store.Open(ctx, backend, cfg.storageKey, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	if len(resources.List()) == 0 {
		for _, seed := range cfg.seeds {
			if _, err := resources.Add(ctx, seed.Name, seed.URL); err != nil {
				_ = backend.Close()
				return nil, fmt.Errorf("failed to seed resource %q: %w", seed.Name, err)
			}
		}
	}

	client := poller.NewClient()
	b := &Board{
		title:           cfg.title,
		port:            cfg.port,
		pollingInterval: cfg.pollingInterval,
		fetchTimeout:    cfg.fetchTimeout,
		location:        location,
		logger:          logger,
		callbacks:       cfg.callbacks,
		backend:         backend,
		store:           resources,
		client:          client,
		scheduler:       poller.NewScheduler(client, cfg.pollingInterval, cfg.fetchTimeout, cfg.maxConcurrency, logger),
		metrics:         metrics.New(),
	}

	for _, entry := range resources.List() {
		b.scheduler.Add(poller.Target{ID: entry.Resource.ID, URL: entry.Resource.URL})
	}
	b.updateResourceGauge()

	return b, nil
}

// openStorage opens the backend selected by the storage options.
func openStorage(ctx context.Context, cfg *boardConfig) (kv.Store, error) {
	switch cfg.storage {
	case storageCustom:
		return cfg.custom, nil
	case storageFile:
		fileStore, err := kv.NewFileStore(cfg.storagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open file storage: %w", err)
		}
		return fileStore, nil
	case storagePostgres:
		pg, err := kv.OpenPostgres(ctx, cfg.storageDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return pg, nil
	default:
		return kv.NewMemoryStore(), nil
	}
}

// Start begins polling resources and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - Every registered resource is fetched immediately, then at the configured interval
//   - The HTTP server starts on the configured port
//   - Fetch outcomes are recorded, logged and passed to callbacks
//   - The dashboard is available at http://localhost:<port>
//
// When ctx is cancelled Start stops polling, waits for pending outcomes to be
// recorded and closes the board. A board can be started only once.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start.
func (b *Board) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return errors.New("resourceboard: board already started or closed")
	}
	b.started = true
	b.mu.Unlock()

	b.logger.Info("resourceboard starting", "resource_count", len(b.store.List()))
	b.logger.Info("polling configured", "interval", b.pollingInterval.String(), "timeout", b.fetchTimeout.String())
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return b.Close()
	}

	b.scheduler.Start(ctx)

	// track the results consumer goroutine to ensure clean shutdown
	b.consumer.Add(1)
	go func() {
		defer b.consumer.Done()
		for result := range b.scheduler.Results() {
			b.record(result)
		}
	}()

	httpServer := server.NewServer(b, b.port, dashboard.Assets, b.title, b.metrics.Handler(), b.logger)
	if err := httpServer.Start(ctx); err != nil {
		_ = b.Close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	err := b.Close()
	b.logger.Info("resourceboard stopped")
	return err
}

// Close stops polling, waits until every pending outcome has been recorded
// and closes storage. Close is idempotent.
func (b *Board) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		b.scheduler.Stop() // closes results channel
		b.consumer.Wait()  // wait for all results to be processed

		if err := b.backend.Close(); err != nil {
			b.closeErr = fmt.Errorf("failed to close storage: %w", err)
		}
	})
	return b.closeErr
}

// record applies one fetch outcome: store first, then metrics, callbacks and
// logging.
func (b *Board) record(pr poller.PollResult) {
	obs := store.Observation{
		State:     store.StateSuccess,
		Payload:   pr.Payload,
		FetchedAt: pr.FetchedAt,
		LatencyMs: pr.Latency.Milliseconds(),
	}
	outcome := metrics.OutcomeSuccess
	if !pr.OK() {
		outcome = string(pr.Err.Kind)
		obs.State = store.StateFailure
		obs.Payload = jsonvalue.Value{}
		obs.Failure = &store.Failure{
			Kind:       string(pr.Err.Kind),
			StatusCode: pr.Err.StatusCode,
			Message:    pr.Err.Message,
		}
	}
	b.metrics.ObserveFetch(outcome, pr.Latency)

	if !b.store.RecordObservation(pr.ResourceID, obs) {
		// removed while the fetch was in flight
		b.metrics.ObserveDropped()
		b.logger.Debug("dropping result for removed resource", "resource_id", pr.ResourceID, "url", pr.URL)
		return
	}
	b.updateResourceGauge()

	if len(b.callbacks) > 0 {
		entry, ok := b.store.Get(pr.ResourceID)
		if ok {
			public := toObservation(entry, pr)
			for _, cb := range b.callbacks {
				invokeCallbackSafe(cb, public, b.logger)
			}
		}
	}

	// log poll results (DEBUG level for success to reduce noise)
	logAttrs := []any{
		"resource_id", pr.ResourceID,
		"url", pr.URL,
		"latency_ms", pr.Latency.Milliseconds(),
	}
	if pr.Err != nil {
		b.logger.Warn("fetch failed", append(logAttrs, "kind", string(pr.Err.Kind), "error", pr.Err.Error())...)
	} else {
		b.logger.Debug("fetch completed", logAttrs...)
	}
}

// updateResourceGauge publishes the number of resources per health state.
func (b *Board) updateResourceGauge() {
	// snapshot and publish together so an older snapshot never lands last
	b.gaugeMu.Lock()
	defer b.gaugeMu.Unlock()

	counts := map[string]int{
		string(store.HealthPending):   0,
		string(store.HealthHealthy):   0,
		string(store.HealthUnhealthy): 0,
	}
	for _, entry := range b.store.List() {
		counts[string(entry.Observation.Health())]++
	}
	b.metrics.SetResources(counts)
}

// toObservation converts an internal poll result to the public callback type.
func toObservation(entry store.Entry, pr poller.PollResult) Observation {
	obs := Observation{
		Resource:   toResource(entry.Resource),
		Health:     Health(entry.Observation.Health()),
		StatusCode: pr.StatusCode,
		Latency:    pr.Latency,
		FetchedAt:  pr.FetchedAt,
	}
	if pr.Err != nil {
		obs.ErrorKind = string(pr.Err.Kind)
		obs.Err = pr.Err
		return obs
	}
	if data, err := json.Marshal(pr.Payload); err == nil {
		obs.Payload = data
	}
	return obs
}

func toResource(r store.Resource) Resource {
	return Resource{ID: r.ID, Name: r.Name, URL: r.URL}
}

// invokeCallbackSafe calls an observation callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Observation), obs Observation, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("observation callback panicked",
				"panic", r,
				"resource_id", obs.Resource.ID,
			)
		}
	}()
	cb(obs)
}

// Resources returns the registered resources in display order.
func (b *Board) Resources() []Resource {
	entries := b.store.List()
	out := make([]Resource, len(entries))
	for i, e := range entries {
		out[i] = toResource(e.Resource)
	}
	return out
}

// AddResource registers a resource and starts polling it.
//
// Returns an error if name or url is empty or the list cannot be persisted.
func (b *Board) AddResource(ctx context.Context, name, url string) (Resource, error) {
	view, err := b.Add(ctx, name, url)
	if err != nil {
		return Resource{}, err
	}
	return Resource{ID: view.ID, Name: view.Name, URL: view.URL}, nil
}

// RemoveResource stops polling a resource and deletes it. Unknown ids are a
// no-op.
func (b *Board) RemoveResource(ctx context.Context, id string) error {
	return b.Remove(ctx, id)
}

// Health returns the current health of a resource.
func (b *Board) Health(id string) (Health, bool) {
	entry, ok := b.store.Get(id)
	if !ok {
		return "", false
	}
	return Health(entry.Observation.Health()), true
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// PollingInterval returns the configured interval between fetches.
func (b *Board) PollingInterval() time.Duration {
	return b.pollingInterval
}

// The methods below back the HTTP surface.

// Views implements server.Board.
func (b *Board) Views() []render.ResourceView {
	entries := b.store.List()
	views := make([]render.ResourceView, len(entries))
	for i, e := range entries {
		views[i] = b.Render(e)
	}
	return views
}

// View implements server.Board.
func (b *Board) View(id string) (render.ResourceView, bool) {
	entry, ok := b.store.Get(id)
	if !ok {
		return render.ResourceView{}, false
	}
	return b.Render(entry), true
}

// Render implements server.Board.
func (b *Board) Render(entry store.Entry) render.ResourceView {
	return render.BuildView(entry, render.ViewOptions{
		Syncing:  b.scheduler.InFlight(entry.Resource.ID),
		Location: b.location,
	})
}

// Add implements server.Board.
func (b *Board) Add(ctx context.Context, name, url string) (render.ResourceView, error) {
	res, err := b.store.Add(ctx, name, url)
	if err != nil {
		return render.ResourceView{}, err
	}
	entry, ok := b.track(res)
	b.updateResourceGauge()
	b.logger.Info("resource added", "resource_id", res.ID, "name", res.Name, "url", res.URL)

	if !ok {
		entry = store.Entry{Resource: res, Observation: store.Observation{State: store.StatePending}}
	}
	return b.Render(entry), nil
}

// track registers a polling task for a stored resource. A Remove can land
// between the store insert and the task registration and find no task to
// cancel, so the store is checked again once the task exists.
func (b *Board) track(res store.Resource) (store.Entry, bool) {
	b.scheduler.Add(poller.Target{ID: res.ID, URL: res.URL})

	entry, ok := b.store.Get(res.ID)
	if !ok {
		b.scheduler.Remove(res.ID)
	}
	return entry, ok
}

// Remove implements server.Board. The store entry goes first so that a
// result still in flight finds nothing to update.
func (b *Board) Remove(ctx context.Context, id string) error {
	if err := b.store.Remove(ctx, id); err != nil {
		return err
	}
	if b.scheduler.Remove(id) {
		b.logger.Info("resource removed", "resource_id", id)
	}
	b.updateResourceGauge()
	return nil
}

// Refresh implements server.Board.
func (b *Board) Refresh(id string) bool {
	return b.scheduler.Refresh(id)
}

// Probe implements server.Board.
func (b *Board) Probe(ctx context.Context, url string) poller.Result {
	return b.client.Fetch(ctx, url, b.fetchTimeout)
}

// Subscribe implements server.Board.
func (b *Board) Subscribe() <-chan store.Event {
	return b.store.Subscribe()
}

// Unsubscribe implements server.Board.
func (b *Board) Unsubscribe(ch <-chan store.Event) {
	b.store.Unsubscribe(ch)
}

var _ server.Board = (*Board)(nil)
