// Package metrics exposes Prometheus metrics for polling activity.
//
// Each [Metrics] owns its own registry so that several boards can live in
// one process (and in tests) without colliding on the global registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resourceboard"

// OutcomeSuccess labels fetches that produced a payload. Failed fetches are
// labelled with their error kind.
const OutcomeSuccess = "success"

// Metrics holds the collectors updated by the board.
type Metrics struct {
	registry *prometheus.Registry

	fetches   *prometheus.CounterVec
	duration  prometheus.Histogram
	resources *prometheus.GaugeVec
	dropped   prometheus.Counter
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Completed resource fetches by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of resource fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		resources: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resources",
			Help:      "Registered resources by health.",
		}, []string{"health"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_dropped_total",
			Help:      "Fetch results discarded because the resource was removed.",
		}),
	}

	m.registry.MustRegister(
		m.fetches,
		m.duration,
		m.resources,
		m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFetch records one completed fetch.
func (m *Metrics) ObserveFetch(outcome string, latency time.Duration) {
	m.fetches.WithLabelValues(outcome).Inc()
	m.duration.Observe(latency.Seconds())
}

// ObserveDropped records a result that arrived after its resource was removed.
func (m *Metrics) ObserveDropped() {
	m.dropped.Inc()
}

// SetResources replaces the per-health resource counts.
func (m *Metrics) SetResources(counts map[string]int) {
	m.resources.Reset()
	for health, n := range counts {
		m.resources.WithLabelValues(health).Set(float64(n))
	}
}

// Registry returns the registry backing the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
