// Package metrics exposes the pipeline's Prometheus metrics: job outcomes
// by status, dead-letter depth, per-fetcher-type scrape duration, and
// dedup outcomes. Recorder implements the narrow Metrics interfaces
// declared by pkg/worker and pkg/dlq, so neither package imports this one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civic-signal/eventscraper/pkg/dedup"
	"github.com/civic-signal/eventscraper/pkg/dlq"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

const namespace = "eventscraper"

var (
	// Registry holds this service's collectors, kept separate from the
	// global default registry so tests can assert against a clean set.
	Registry = prometheus.NewRegistry()

	jobOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "outcomes_total",
			Help:      "Scrape jobs processed, by terminal outcome.",
		},
		[]string{"outcome"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Homepage fetch duration, by fetch strategy.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"strategy"},
	)

	dedupOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "outcomes_total",
			Help:      "Cards run through dedup, by admission outcome.",
		},
		[]string{"outcome"},
	)

	dlqDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dlq",
			Name:      "depth",
			Help:      "Dead-letter queue item count, by status.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		jobOutcomes,
		fetchDuration,
		dedupOutcomes,
		dlqDepth,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Recorder adapts the package vars to worker.Metrics and dlq.Metrics.
// The zero value is ready to use.
type Recorder struct{}

var (
	_ worker.Metrics = Recorder{}
	_ dlq.Metrics    = Recorder{}
)

// RecordJobOutcome implements worker.Metrics.
func (Recorder) RecordJobOutcome(outcome worker.JobOutcome) {
	jobOutcomes.WithLabelValues(string(outcome)).Inc()
}

// ObserveFetchDuration implements worker.Metrics.
func (Recorder) ObserveFetchDuration(strategy models.FetchStrategy, d time.Duration) {
	fetchDuration.WithLabelValues(string(strategy)).Observe(d.Seconds())
}

// RecordDedupOutcome implements worker.Metrics.
func (Recorder) RecordDedupOutcome(outcome dedup.Outcome) {
	dedupOutcomes.WithLabelValues(string(outcome)).Inc()
}

// SetDLQDepth implements dlq.Metrics.
func (Recorder) SetDLQDepth(stats store.DLQStats) {
	dlqDepth.WithLabelValues("pending").Set(float64(stats.Pending))
	dlqDepth.WithLabelValues("retrying").Set(float64(stats.Retrying))
	dlqDepth.WithLabelValues("resolved").Set(float64(stats.Resolved))
	dlqDepth.WithLabelValues("discarded").Set(float64(stats.Discarded))
}
