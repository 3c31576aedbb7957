package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_pipeline_duration_seconds",
			Help:    "End-to-end duration of the fetch/score/merge pipeline.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_lookups_total",
			Help: "Response cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
	sourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetch_failures_total",
			Help: "Per-source adapter call failures absorbed by the pipeline.",
		},
		[]string{"source", "op"},
	)
	ingestedProducts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingested_products_total",
			Help: "Scraped product messages by processing outcome.",
		},
		[]string{"source", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(searchDuration, cacheLookups, sourceFailures, ingestedProducts)
}

// ObserveSearch records one full pipeline run.
func ObserveSearch(d time.Duration) {
	searchDuration.Observe(d.Seconds())
}

// CacheHit and CacheMiss record response cache outcomes.
func CacheHit()  { cacheLookups.WithLabelValues("hit").Inc() }
func CacheMiss() { cacheLookups.WithLabelValues("miss").Inc() }

// SourceFailure records an absorbed adapter failure.
func SourceFailure(source, op string) {
	sourceFailures.WithLabelValues(source, op).Inc()
}

// IngestOutcome records one consumed scraper message.
func IngestOutcome(source, outcome string) {
	ingestedProducts.WithLabelValues(source, outcome).Inc()
}
