// ABOUTME: This file defines Prometheus collectors for cache and source fetches
// ABOUTME: Exposed at /metrics; labels stay low-cardinality (operation, source)

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts cache hits per logical operation.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_cache_hits_total",
		Help: "Number of cache hits by operation.",
	}, []string{"op"})

	// CacheMisses counts cache misses (including expiries) per operation.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_cache_misses_total",
		Help: "Number of cache misses by operation.",
	}, []string{"op"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "funnel_source_fetch_duration_seconds",
		Help:    "Duration of source adapter fetches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source", "op"})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_source_fetch_failures_total",
		Help: "Number of source adapter fetches that fell back to defaults.",
	}, []string{"source", "op"})
)

// ObserveFetch records one source fetch outcome.
func ObserveFetch(source, op string, start time.Time, failed bool) {
	fetchDuration.WithLabelValues(source, op).Observe(time.Since(start).Seconds())
	if failed {
		fetchFailures.WithLabelValues(source, op).Inc()
	}
}
