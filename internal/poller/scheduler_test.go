package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fetcherFunc adapts a function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, url string, timeout time.Duration) Result

func (f fetcherFunc) Fetch(ctx context.Context, url string, timeout time.Duration) Result {
	return f(ctx, url, timeout)
}

// okFetcher succeeds immediately with an empty array.
var okFetcher = fetcherFunc(func(ctx context.Context, url string, timeout time.Duration) Result {
	return Result{Payload: jsonvalue.NewArray(), StatusCode: 200, FetchedAt: time.Now()}
})

// blockingFetcher blocks every fetch until release is closed or ctx ends.
func blockingFetcher(started chan<- string, release <-chan struct{}) fetcherFunc {
	return func(ctx context.Context, url string, timeout time.Duration) Result {
		if started != nil {
			started <- url
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return Result{Payload: jsonvalue.NewArray(), StatusCode: 200, FetchedAt: time.Now()}
	}
}

func receive(t *testing.T, ch <-chan PollResult) PollResult {
	t.Helper()
	select {
	case r, ok := <-ch:
		if !ok {
			t.Fatal("results channel closed")
		}
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for poll result")
	}
	return PollResult{}
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	scheduler := NewScheduler(okFetcher, time.Minute, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})

	// this must not panic
	scheduler.Stop()
}

// TestScheduler_StopTwice verifies that Stop() is idempotent and can be
// called multiple times without panic or deadlock.
func TestScheduler_StopTwice(t *testing.T) {
	scheduler := NewScheduler(okFetcher, time.Minute, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(context.Background())

	// both calls must complete without panic or deadlock
	scheduler.Stop()
	scheduler.Stop()
}

// TestScheduler_StopAfterStart verifies the normal lifecycle: Start followed
// by Stop results in clean shutdown with the results channel closed.
func TestScheduler_StopAfterStart(t *testing.T) {
	scheduler := NewScheduler(okFetcher, time.Minute, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(context.Background())

	// drain results channel to prevent blocking
	go func() {
		for range scheduler.Results() {
		}
	}()

	// give the scheduler a moment to start polling
	time.Sleep(50 * time.Millisecond)

	scheduler.Stop()

	// verify results channel is closed by reading from it
	select {
	case _, ok := <-scheduler.Results():
		if ok {
			t.Error("expected results channel to be closed after Stop()")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for results channel to close")
	}
}

// TestScheduler_ConcurrentStartStop verifies that calling Start() and Stop()
// concurrently does not cause a race condition or panic.
// Run with: go test -race ./internal/poller/...
func TestScheduler_ConcurrentStartStop(t *testing.T) {
	// run multiple iterations to increase chance of catching races
	for i := 0; i < 100; i++ {
		scheduler := NewScheduler(okFetcher, time.Minute, time.Second, 1, testLogger())
		scheduler.Add(Target{ID: "a", URL: "http://example.com"})

		var wg sync.WaitGroup
		wg.Add(3)

		go func() {
			defer wg.Done()
			scheduler.Start(context.Background())
		}()

		go func() {
			defer wg.Done()
			scheduler.Add(Target{ID: "b", URL: "http://example.com"})
		}()

		go func() {
			defer wg.Done()
			scheduler.Stop()
		}()

		wg.Wait()
		scheduler.Stop()

		// drain any remaining results
		for range scheduler.Results() {
		}
	}
}

// TestScheduler_ConcurrentPollAndStop verifies that task goroutines don't race
// with Stop(). Run with: go test -race ./internal/poller/...
func TestScheduler_ConcurrentPollAndStop(t *testing.T) {
	// run multiple iterations to increase chance of catching races
	for i := 0; i < 50; i++ {
		scheduler := NewScheduler(okFetcher, 10*time.Millisecond, time.Second, 2, testLogger())
		for j := 0; j < 3; j++ {
			scheduler.Add(Target{ID: fmt.Sprintf("t%d", j), URL: "http://example.com"})
		}
		scheduler.Start(context.Background())

		// let it poll at least once
		time.Sleep(15 * time.Millisecond)

		// stop while polling may be active
		scheduler.Stop()

		// verify clean shutdown by draining results
		for range scheduler.Results() {
		}
	}
}

// TestScheduler_StartTwice verifies that Start() is idempotent and calling
// it multiple times does not spawn multiple task goroutines.
func TestScheduler_StartTwice(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context, url string, timeout time.Duration) Result {
		calls.Add(1)
		return Result{}
	})

	scheduler := NewScheduler(fetcher, time.Hour, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})

	scheduler.Start(context.Background())
	scheduler.Start(context.Background()) // second call should be no-op

	receive(t, scheduler.Results())
	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

// TestScheduler_StopBeforeStartThenStart verifies that if Stop() is called
// before Start(), a subsequent Start() call is handled gracefully.
func TestScheduler_StopBeforeStartThenStart(t *testing.T) {
	scheduler := NewScheduler(okFetcher, time.Minute, time.Second, 1, testLogger())

	scheduler.Stop()                // stop before start
	scheduler.Start(context.TODO()) // start after stop - should be no-op
	scheduler.Stop()                // second stop should not panic

	if scheduler.Add(Target{ID: "a", URL: "http://example.com"}) {
		t.Error("Add() after Stop = true, want false")
	}
}

// TestScheduler_ContextCancellation verifies that cancelling the parent context
// stops the scheduler gracefully.
func TestScheduler_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	scheduler := NewScheduler(blockingFetcher(nil, release), time.Minute, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(ctx)

	// drain results
	go func() {
		for range scheduler.Results() {
		}
	}()

	// cancel parent context
	cancel()

	// stop should complete quickly since context is already cancelled
	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
		// success
	case <-time.After(2 * time.Second):
		t.Error("Stop() did not complete after parent context cancellation")
	}
}

// TestScheduler_ImmediatePollOnStart verifies that resources registered before
// Start are fetched immediately, regardless of the interval.
func TestScheduler_ImmediatePollOnStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	scheduler := NewScheduler(NewClient(), time.Hour, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "long", URL: server.URL})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	result := receive(t, scheduler.Results())
	if result.ResourceID != "long" {
		t.Errorf("ResourceID = %q, want %q", result.ResourceID, "long")
	}
	if result.URL != server.URL {
		t.Errorf("URL = %q, want %q", result.URL, server.URL)
	}
	if !result.OK() {
		t.Errorf("result error = %v", result.Err)
	}
}

func TestScheduler_AddAfterStartPollsImmediately(t *testing.T) {
	scheduler := NewScheduler(okFetcher, time.Hour, time.Second, 1, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	if !scheduler.Add(Target{ID: "late", URL: "http://example.com"}) {
		t.Fatal("Add() = false, want true")
	}
	if got := receive(t, scheduler.Results()).ResourceID; got != "late" {
		t.Errorf("ResourceID = %q, want late", got)
	}
}

func TestScheduler_AddDuplicate(t *testing.T) {
	scheduler := NewScheduler(okFetcher, time.Hour, time.Second, 1, testLogger())
	defer scheduler.Stop()

	if !scheduler.Add(Target{ID: "a", URL: "http://one"}) {
		t.Fatal("first Add() = false")
	}
	if scheduler.Add(Target{ID: "a", URL: "http://two"}) {
		t.Error("duplicate Add() = true, want false")
	}
}

func TestScheduler_PollsAtInterval(t *testing.T) {
	scheduler := NewScheduler(okFetcher, 20*time.Millisecond, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	for i := 0; i < 3; i++ {
		receive(t, scheduler.Results())
	}
}

func TestScheduler_RemoveStopsPolling(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context, url string, timeout time.Duration) Result {
		calls.Add(1)
		return Result{}
	})

	scheduler := NewScheduler(fetcher, 10*time.Millisecond, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	receive(t, scheduler.Results())
	if !scheduler.Remove("a") {
		t.Fatal("Remove() = false, want true")
	}
	if scheduler.Remove("a") {
		t.Error("second Remove() = true, want false")
	}

	// drain anything emitted before the cancel landed
	time.Sleep(30 * time.Millisecond)
	for len(scheduler.Results()) > 0 {
		<-scheduler.Results()
	}
	before := calls.Load()
	time.Sleep(100 * time.Millisecond)

	if after := calls.Load(); after != before {
		t.Errorf("fetches after Remove = %d, want 0", after-before)
	}
}

func TestScheduler_RemoveDropsInFlightResult(t *testing.T) {
	started := make(chan string, 1)
	release := make(chan struct{})

	scheduler := NewScheduler(blockingFetcher(started, release), time.Hour, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	<-started
	if !scheduler.InFlight("a") {
		t.Error("InFlight() = false during fetch")
	}

	scheduler.Remove("a")
	close(release)

	select {
	case r := <-scheduler.Results():
		t.Errorf("received result for removed resource %q", r.ResourceID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduler_RemoveOnlyCancelsOneTask(t *testing.T) {
	scheduler := NewScheduler(okFetcher, 10*time.Millisecond, time.Second, 2, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://a"})
	scheduler.Add(Target{ID: "b", URL: "http://b"})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	scheduler.Remove("a")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case r := <-scheduler.Results():
			if r.ResourceID == "b" {
				return
			}
		case <-deadline:
			t.Fatal("resource b stopped polling after removing a")
		}
	}
}

func TestScheduler_Refresh(t *testing.T) {
	scheduler := NewScheduler(okFetcher, time.Hour, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	receive(t, scheduler.Results())

	if !scheduler.Refresh("a") {
		t.Fatal("Refresh() = false, want true")
	}
	if got := receive(t, scheduler.Results()).ResourceID; got != "a" {
		t.Errorf("ResourceID = %q, want a", got)
	}

	if scheduler.Refresh("missing") {
		t.Error("Refresh(missing) = true, want false")
	}
}

func TestScheduler_RefreshCoalesces(t *testing.T) {
	started := make(chan string, 10)
	release := make(chan struct{})
	var calls atomic.Int32
	blocking := blockingFetcher(started, release)
	fetcher := fetcherFunc(func(ctx context.Context, url string, timeout time.Duration) Result {
		calls.Add(1)
		return blocking(ctx, url, timeout)
	})

	scheduler := NewScheduler(fetcher, time.Hour, time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	<-started
	// three refreshes while the first fetch is running collapse into one
	for i := 0; i < 3; i++ {
		scheduler.Refresh("a")
	}
	close(release)

	receive(t, scheduler.Results())
	receive(t, scheduler.Results())

	select {
	case <-scheduler.Results():
		t.Error("received a third result, want refreshes coalesced")
	case <-time.After(100 * time.Millisecond):
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestScheduler_ConcurrencyLimit(t *testing.T) {
	const limit = 2
	var current, peak atomic.Int32
	release := make(chan struct{})

	fetcher := fetcherFunc(func(ctx context.Context, url string, timeout time.Duration) Result {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		current.Add(-1)
		return Result{}
	})

	scheduler := NewScheduler(fetcher, time.Hour, time.Second, limit, testLogger())
	for i := 0; i < 6; i++ {
		scheduler.Add(Target{ID: fmt.Sprintf("r%d", i), URL: "http://example.com"})
	}
	scheduler.Start(context.Background())

	time.Sleep(100 * time.Millisecond)
	if got := peak.Load(); got != limit {
		t.Errorf("peak concurrent fetches = %d, want %d", got, limit)
	}

	close(release)
	for i := 0; i < 6; i++ {
		receive(t, scheduler.Results())
	}
	scheduler.Stop()

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrent fetches = %d, want <= %d", got, limit)
	}
}

func TestScheduler_PassesTimeout(t *testing.T) {
	got := make(chan time.Duration, 1)
	fetcher := fetcherFunc(func(ctx context.Context, url string, timeout time.Duration) Result {
		select {
		case got <- timeout:
		default:
		}
		return Result{}
	})

	scheduler := NewScheduler(fetcher, time.Hour, 3*time.Second, 1, testLogger())
	scheduler.Add(Target{ID: "a", URL: "http://example.com"})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	receive(t, scheduler.Results())
	if d := <-got; d != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", d)
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	scheduler := NewScheduler(nil, 0, 0, 0, nil)
	defer scheduler.Stop()

	if scheduler.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", scheduler.interval, DefaultInterval)
	}
	if scheduler.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", scheduler.timeout, DefaultTimeout)
	}
	if cap(scheduler.sem) != DefaultMaxConcurrency {
		t.Errorf("maxConcurrency = %d, want %d", cap(scheduler.sem), DefaultMaxConcurrency)
	}
	if _, ok := scheduler.fetcher.(*Client); !ok {
		t.Errorf("fetcher = %T, want *Client", scheduler.fetcher)
	}
}

// TestScheduler_FetcherPanicRecovery verifies that a panicking fetcher does
// not crash the scheduler. Instead, it should report a failure with an error
// describing the panic.
func TestScheduler_FetcherPanicRecovery(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, url string, timeout time.Duration) Result {
		panic("fetcher panic: simulated failure")
	})

	scheduler := NewScheduler(fetcher, time.Hour, time.Second, 1, testLogger()) // long interval, we only want one poll
	scheduler.Add(Target{ID: "panic", URL: "http://example.com"})
	scheduler.Start(context.Background())

	result := receive(t, scheduler.Results())
	scheduler.Stop()

	if result.OK() {
		t.Fatal("result OK, want failure describing panic")
	}
	if result.Err.Kind != ErrConnectionFailed {
		t.Errorf("Kind = %v, want %v", result.Err.Kind, ErrConnectionFailed)
	}
	if !strings.Contains(result.Err.Message, "fetcher panic") {
		t.Errorf("Message = %q, want to contain 'fetcher panic'", result.Err.Message)
	}
	if !strings.Contains(result.Err.Message, "correlation_id") {
		t.Errorf("Message = %q, want to contain 'correlation_id'", result.Err.Message)
	}
}

// TestScheduler_FetcherPanicDoesNotAffectOtherResources verifies that a panic
// while fetching one resource does not prevent other resources from being polled.
func TestScheduler_FetcherPanicDoesNotAffectOtherResources(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, url string, timeout time.Duration) Result {
		if url == "http://panics" {
			panic("boom")
		}
		return Result{Payload: jsonvalue.NewArray()}
	})

	scheduler := NewScheduler(fetcher, time.Hour, time.Second, 2, testLogger())
	scheduler.Add(Target{ID: "panicking", URL: "http://panics"})
	scheduler.Add(Target{ID: "healthy", URL: "http://healthy"})
	scheduler.Start(context.Background())

	results := make(map[string]PollResult)
	for i := 0; i < 2; i++ {
		r := receive(t, scheduler.Results())
		results[r.ResourceID] = r
	}
	scheduler.Stop()

	if results["panicking"].OK() {
		t.Error("panicking resource reported OK")
	}
	if !results["healthy"].OK() {
		t.Errorf("healthy resource error = %v", results["healthy"].Err)
	}
}
