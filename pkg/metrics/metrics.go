// Package metrics defines the Prometheus metric collectors used across the
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchCandidates     prometheus.Histogram
	SearchDegradedTotal  prometheus.Counter
	TypoExpansionsTotal  prometheus.Counter
	SchedulerRejections  prometheus.Counter
	SchedulerInFlight    prometheus.Gauge
	MutationsTotal       *prometheus.CounterVec
	MutationQueueDepth   *prometheus.GaugeVec
	SnapshotGeneration   *prometheus.GaugeVec
	IndexRebuildsTotal   *prometheus.CounterVec
	IndexedDocuments     *prometheus.GaugeVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	InconsistenciesTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by outcome (complete, degraded, rejected, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"index"},
		),
		SearchCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_candidate_documents",
				Help:    "Candidate set size before ranking.",
				Buckets: []float64{0, 10, 100, 1000, 10000, 100000},
			},
		),
		SearchDegradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_degraded_total",
				Help: "Searches that hit the cutoff and returned partial results.",
			},
		),
		TypoExpansionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "typo_expansions_total",
				Help: "Dictionary words admitted as fuzzy matches for query terms.",
			},
		),
		SchedulerRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scheduler_rejections_total",
				Help: "Queries rejected because the scheduler was at capacity.",
			},
		),
		SchedulerInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scheduler_in_flight_queries",
				Help: "Queries currently admitted by the scheduler.",
			},
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_mutations_total",
				Help: "Applied index mutations by kind (add, delete, settings).",
			},
			[]string{"index", "kind"},
		),
		MutationQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_mutation_queue_depth",
				Help: "Pending mutations in the per-index FIFO stream.",
			},
			[]string{"index"},
		),
		SnapshotGeneration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_snapshot_generation",
				Help: "Monotonic generation number of the published snapshot.",
			},
			[]string{"index"},
		),
		IndexRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_rebuilds_total",
				Help: "Full index rebuilds triggered by settings changes.",
			},
			[]string{"index"},
		),
		IndexedDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexed_documents",
				Help: "Documents visible in the published snapshot.",
			},
			[]string{"index"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_hits_total",
				Help: "Total query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_misses_total",
				Help: "Total query cache misses.",
			},
		),
		InconsistenciesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "snapshot_inconsistencies_total",
				Help: "Postings referencing documents missing from storage, skipped per query.",
			},
		),
	}

	prometheus.MustRegister(
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchCandidates,
		m.SearchDegradedTotal,
		m.TypoExpansionsTotal,
		m.SchedulerRejections,
		m.SchedulerInFlight,
		m.MutationsTotal,
		m.MutationQueueDepth,
		m.SnapshotGeneration,
		m.IndexRebuildsTotal,
		m.IndexedDocuments,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.InconsistenciesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
