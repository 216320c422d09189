package resourceboard

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder collects observations safely across goroutines.
type recorder struct {
	mu   sync.Mutex
	seen []Observation
}

func (r *recorder) record(obs Observation) {
	r.mu.Lock()
	r.seen = append(r.seen, obs)
	r.mu.Unlock()
}

func (r *recorder) observations() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Observation(nil), r.seen...)
}

func TestCallback_InvokedOnFetch(t *testing.T) {
	upstream, _ := jsonServer(t, http.StatusOK, `[]`)

	rec := &recorder{}
	b := newTestBoard(t, WithPort(freePort(t)), WithSeed("A", upstream.URL), WithObservationCallback(rec.record))
	startBoard(t, b)

	waitFor(t, "callback", func() bool { return len(rec.observations()) >= 1 })
}

func TestCallback_SuccessFields(t *testing.T) {
	upstream, _ := jsonServer(t, http.StatusOK, `{"data":[{"id":1,"title":"A"}]}`)

	rec := &recorder{}
	before := time.Now()
	b := newTestBoard(t, WithPort(freePort(t)), WithSeed("Things", upstream.URL), WithObservationCallback(rec.record))
	startBoard(t, b)

	waitFor(t, "callback", func() bool { return len(rec.observations()) >= 1 })
	obs := rec.observations()[0]

	want := b.Resources()[0]
	if obs.Resource != want {
		t.Errorf("Resource = %+v, want %+v", obs.Resource, want)
	}
	if obs.Health != HealthHealthy {
		t.Errorf("Health = %v, want healthy", obs.Health)
	}
	if obs.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", obs.StatusCode)
	}
	if string(obs.Payload) != `{"data":[{"id":1,"title":"A"}]}` {
		t.Errorf("Payload = %s", obs.Payload)
	}
	if obs.FetchedAt.Before(before) {
		t.Errorf("FetchedAt = %v, want after %v", obs.FetchedAt, before)
	}
	if obs.Latency < 0 {
		t.Errorf("Latency = %v, want non-negative", obs.Latency)
	}
	if obs.Err != nil || obs.ErrorKind != "" {
		t.Errorf("Err = %v, ErrorKind = %q; want none", obs.Err, obs.ErrorKind)
	}
}

func TestCallback_FailureFields(t *testing.T) {
	upstream, _ := jsonServer(t, http.StatusNotFound, `missing`)

	rec := &recorder{}
	b := newTestBoard(t, WithPort(freePort(t)), WithSeed("Gone", upstream.URL), WithObservationCallback(rec.record))
	startBoard(t, b)

	waitFor(t, "callback", func() bool { return len(rec.observations()) >= 1 })
	obs := rec.observations()[0]

	if obs.Health != HealthUnhealthy {
		t.Errorf("Health = %v, want unhealthy", obs.Health)
	}
	if obs.ErrorKind != ErrorHTTPStatus {
		t.Errorf("ErrorKind = %q, want %q", obs.ErrorKind, ErrorHTTPStatus)
	}
	if obs.Err == nil || obs.Err.Error() != "HTTP 404: Not Found. Response: missing" {
		t.Errorf("Err = %v", obs.Err)
	}
	if obs.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", obs.StatusCode)
	}
	if obs.Payload != nil {
		t.Errorf("Payload = %s, want nil", obs.Payload)
	}
}

func TestCallback_ConnectionFailure(t *testing.T) {
	port := freePort(t)
	rec := &recorder{}
	b := newTestBoard(t,
		WithPort(freePort(t)),
		WithSeed("Nowhere", fmt.Sprintf("http://127.0.0.1:%d", port)),
		WithObservationCallback(rec.record),
	)
	startBoard(t, b)

	waitFor(t, "callback", func() bool { return len(rec.observations()) >= 1 })
	obs := rec.observations()[0]

	if obs.ErrorKind != ErrorConnectionFailed {
		t.Errorf("ErrorKind = %q, want %q", obs.ErrorKind, ErrorConnectionFailed)
	}
	if obs.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", obs.StatusCode)
	}
}

func TestCallback_PanicRecovered(t *testing.T) {
	upstream, _ := jsonServer(t, http.StatusOK, `[]`)

	var buf safeBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rec := &recorder{}
	b, err := New(
		WithLogger(logger),
		WithPort(freePort(t)),
		WithSeed("A", upstream.URL),
		WithObservationCallback(func(Observation) { panic(errors.New("callback exploded")) }),
		WithObservationCallback(rec.record),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startBoard(t, b)

	// the second callback still runs after the first panics
	waitFor(t, "callback", func() bool { return len(rec.observations()) >= 1 })

	if !strings.Contains(buf.String(), "observation callback panicked") {
		t.Errorf("log missing panic entry: %s", buf.String())
	}
}

func TestCallback_RegistrationOrder(t *testing.T) {
	upstream, _ := jsonServer(t, http.StatusOK, `[]`)

	var mu sync.Mutex
	var order []string
	add := func(name string) func(Observation) {
		return func(Observation) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	b := newTestBoard(t,
		WithPort(freePort(t)),
		WithPollingInterval(time.Hour),
		WithSeed("A", upstream.URL),
		WithObservationCallback(add("first")),
		WithObservationCallback(add("second")),
		WithObservationCallback(add("third")),
	)
	startBoard(t, b)

	waitFor(t, "callbacks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(order, ",") != "first,second,third" {
		t.Errorf("order = %v", order)
	}
}

// safeBuffer is a bytes.Buffer guarded for concurrent log writes.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
