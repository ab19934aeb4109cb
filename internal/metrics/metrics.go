// README: Prometheus collectors for pipeline runs, registered on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

type Option func(*Metrics)

func WithNamespace(ns string) Option {
	return func(m *Metrics) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

func WithDurationBuckets(buckets []float64) Option {
	return func(m *Metrics) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

type Metrics struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	runs               *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	rowsWritten        *prometheus.CounterVec
	samples            *prometheus.CounterVec
	overlappingSamples prometheus.Counter
	droppedRideKeys    prometheus.Counter
	metadataFailures   prometheus.Counter
}

// New registers every collector on a fresh registry so tests can build as
// many instances as they like.
func New(opts ...Option) *Metrics {
	m := &Metrics{
		namespace: "zonerev",
		buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "runs_total",
		Help:      "Pipeline runs by grain and outcome.",
	}, []string{"grain", "outcome"})
	m.runDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of pipeline runs.",
		Buckets:   m.buckets,
	}, []string{"grain"})
	m.rowsWritten = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "rows_written_total",
		Help:      "Stats rows inserted by window replaces.",
	}, []string{"grain"})
	m.samples = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "samples_total",
		Help:      "Attributed samples by feed and whether a zone contained them.",
	}, []string{"feed", "assignment"})
	m.overlappingSamples = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "overlapping_samples_total",
		Help:      "Samples contained by more than one zone.",
	})
	m.droppedRideKeys = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "dropped_ride_keys_total",
		Help:      "Ride aggregates without telemetry, left out of the stats rows.",
	})
	m.metadataFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "metadata_refresh_failures_total",
		Help:      "Failed zone metadata sheet refreshes.",
	})
	return m
}

func (m *Metrics) ObserveRun(grain, outcome string, elapsed time.Duration) {
	m.runs.WithLabelValues(grain, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.runDuration.WithLabelValues(grain).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) AddRowsWritten(grain string, n int64) {
	m.rowsWritten.WithLabelValues(grain).Add(float64(n))
}

func (m *Metrics) AddSamples(feed string, assigned, unassigned int) {
	m.samples.WithLabelValues(feed, "assigned").Add(float64(assigned))
	m.samples.WithLabelValues(feed, "unassigned").Add(float64(unassigned))
}

func (m *Metrics) AddOverlapping(n int) { m.overlappingSamples.Add(float64(n)) }

func (m *Metrics) AddDroppedRideKeys(n int) { m.droppedRideKeys.Add(float64(n)) }

func (m *Metrics) IncMetadataFailure() { m.metadataFailures.Inc() }

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
