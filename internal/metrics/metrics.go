// Package metrics exposes the key server's Prometheus instrumentation:
// per-stage pipeline counters/histograms and cache hit/miss counters,
// served on a standalone /metrics endpoint. The collectors are
// registered and served, but nothing else in this module records
// values into them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seal"

// Registry is the dedicated registry for this process, kept separate
// from the global default so tests can build independent instances.
var Registry = prometheus.NewRegistry()

var (
	// RequestsTotal counts /v1/fetch_keys requests by terminal outcome
	// category (ok, or a pkg/sealerrors category on failure).
	RequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "total",
			Help:      "Total fetch_keys requests by outcome",
		},
		[]string{"outcome"},
	)

	// StageDuration tracks per-pipeline-stage latency.
	StageDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "fetch_keys pipeline stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"stage"},
	)

	// CacheOperations counts cache hits/misses per cache.
	CacheOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache hit/miss counts by cache and result",
		},
		[]string{"cache", "result"},
	)

	// SharesExtracted counts individual key-share extractions, success
	// or failure, by client.
	SharesExtracted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "shares_total",
			Help:      "User secret key shares extracted, by client and result",
		},
		[]string{"client", "result"},
	)

	// FullNodeRPCDuration tracks outbound dry_run_transaction latency.
	FullNodeRPCDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fullnode",
			Name:      "dry_run_duration_seconds",
			Help:      "dry_run_transaction RPC duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	// RateLimited counts requests rejected by the per-address limiter
	// or the concurrency semaphore.
	RateLimited = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "rate_limited_total",
			Help:      "Requests rejected for backpressure, by reason",
		},
		[]string{"reason"},
	)
)

// Handler returns the HTTP handler serving this registry's metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer runs a standalone metrics HTTP server on addr. It blocks
// until the server stops; callers typically run it in its own goroutine.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
