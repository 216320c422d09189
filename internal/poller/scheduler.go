package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultInterval is the polling interval used when none is configured.
	DefaultInterval = 10 * time.Second

	// DefaultMaxConcurrency bounds simultaneous fetches across all resources.
	DefaultMaxConcurrency = 10

	resultsBuffer = 64
)

// Fetcher performs a single fetch. [*Client] is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) Result
}

// Target identifies a resource to poll.
type Target struct {
	ID  string
	URL string
}

// PollResult is a fetch outcome tagged with the resource it belongs to.
type PollResult struct {
	ResourceID string
	URL        string
	Result
}

// task is the polling loop of one resource.
type task struct {
	target  Target
	cancel  context.CancelFunc
	refresh chan struct{}
}

// Scheduler polls registered resources at a fixed interval.
//
// Each resource is owned by its own task goroutine, which fetches immediately
// on registration and then on every tick. A task never overlaps its own
// fetches. A shared semaphore bounds the number of fetches in flight across
// all tasks. Results are emitted to a channel that can be consumed by the
// caller.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	sem      chan struct{}
	results  chan PollResult
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu        sync.Mutex
	tasks     map[string]*task
	inFlight  map[string]bool
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// NewScheduler creates a new polling [Scheduler].
//
// Parameters:
//   - fetcher: Performs the HTTP requests; nil means a new [Client]
//   - interval: Time between fetches of the same resource
//   - timeout: Per-fetch timeout passed to the fetcher
//   - maxConcurrency: Maximum number of concurrent fetches
//   - logger: Logger for scheduler events (panic recovery, etc.)
//
// Non-positive values fall back to [DefaultInterval], [DefaultTimeout] and
// [DefaultMaxConcurrency]. The scheduler must be started with
// [Scheduler.Start] and stopped with [Scheduler.Stop]. Results are available
// via [Scheduler.Results].
func NewScheduler(fetcher Fetcher, interval, timeout time.Duration, maxConcurrency int, logger *slog.Logger) *Scheduler {
	if fetcher == nil {
		fetcher = NewClient()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		fetcher:  fetcher,
		interval: interval,
		timeout:  timeout,
		sem:      make(chan struct{}, maxConcurrency),
		results:  make(chan PollResult, resultsBuffer),
		logger:   logger,
		tasks:    make(map[string]*task),
		inFlight: make(map[string]bool),
	}
}

// Results returns a receive-only channel that emits [PollResult] values.
//
// The channel is closed when the scheduler stops. Consumers should read from
// this channel until it is closed to receive all poll results.
func (s *Scheduler) Results() <-chan PollResult {
	return s.results
}

// Add registers a resource. Before Start the task is queued; after Start it
// begins polling immediately. Add reports false if the id is already
// registered or the scheduler has stopped.
func (s *Scheduler) Add(t Target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, exists := s.tasks[t.ID]; exists {
		return false
	}

	tk := &task{target: t, refresh: make(chan struct{}, 1)}
	s.tasks[t.ID] = tk
	if s.started {
		s.launchLocked(tk)
	}
	return true
}

// Remove cancels the task for id. An in-flight fetch is abandoned and its
// result is not emitted. Remove reports whether a task existed.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk, ok := s.tasks[id]
	if !ok {
		return false
	}
	delete(s.tasks, id)
	if tk.cancel != nil {
		tk.cancel()
	}
	return true
}

// Refresh asks the task for id to fetch now. Requests made while a fetch is
// already pending are coalesced into one. Refresh reports whether the id is
// registered.
func (s *Scheduler) Refresh(id string) bool {
	s.mu.Lock()
	tk, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case tk.refresh <- struct{}{}:
	default:
		// a refresh is already queued
	}
	return true
}

// InFlight reports whether a fetch for id is currently running.
func (s *Scheduler) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[id]
}

// Start launches a task for every registered resource.
//
// Start is non-blocking and returns immediately. Each task will:
//  1. Fetch its resource immediately
//  2. Fetch again on every interval tick or refresh request
//  3. Continue until removed, [Scheduler.Stop] is called or the context is cancelled
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, tk := range s.tasks {
		s.launchLocked(tk)
	}
}

// launchLocked starts the goroutine for tk. Caller must hold mu.
func (s *Scheduler) launchLocked(tk *task) {
	taskCtx, cancel := context.WithCancel(s.ctx)
	tk.cancel = cancel
	s.wg.Add(1)
	go s.run(taskCtx, tk)
}

// Stop halts the scheduler and waits for all task goroutines to complete.
//
// Stop cancels the scheduler's context and blocks until:
//   - Every task loop exits
//   - All in-flight requests complete
//   - The results channel is closed
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// clean up client connections after all goroutines complete
	if c, ok := s.fetcher.(*Client); ok {
		c.Close()
	}

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

func (s *Scheduler) run(ctx context.Context, tk *task) {
	defer s.wg.Done()

	s.poll(ctx, tk.target)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx, tk.target)
		case <-tk.refresh:
			s.poll(ctx, tk.target)
		}
	}
}

// poll performs one fetch under the concurrency limit and emits the result.
// Results of cancelled tasks are dropped.
func (s *Scheduler) poll(ctx context.Context, t Target) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	s.setInFlight(t.ID, true)
	result := s.safeFetch(ctx, t.URL)
	s.setInFlight(t.ID, false)
	<-s.sem

	if ctx.Err() != nil {
		return
	}

	select {
	case s.results <- PollResult{ResourceID: t.ID, URL: t.URL, Result: result}:
	case <-ctx.Done():
	}
}

func (s *Scheduler) setInFlight(id string, v bool) {
	s.mu.Lock()
	if v {
		s.inFlight[id] = true
	} else {
		delete(s.inFlight, id)
	}
	s.mu.Unlock()
}

// safeFetch calls the fetcher with panic recovery.
// If the fetcher panics, it logs the full stack trace with a correlation ID
// and returns a connection_failed result with an error containing the ID.
func (s *Scheduler) safeFetch(ctx context.Context, url string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			// log full context server-side for debugging
			s.logger.Error("fetcher panic",
				"correlation_id", correlationID,
				"url", url,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			result = Result{
				FetchedAt: time.Now(),
				Err: &FetchError{
					Kind:    ErrConnectionFailed,
					Message: fmt.Sprintf("fetcher panic (correlation_id: %s)", correlationID),
				},
			}
		}
	}()
	return s.fetcher.Fetch(ctx, url, s.timeout)
}
