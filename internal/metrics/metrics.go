// Package metrics exposes the Prometheus counters and histograms the
// caching pipeline updates as it runs: cache hits/misses, tiles created,
// upstream requests/errors, and lock-wait latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the cache pipeline touches, so a caller
// constructs one and threads it through creator.Config rather than reaching for package-level globals registered against the
// default Prometheus registry.
type Registry struct {
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	TilesCreated  *prometheus.CounterVec
	CreateSeconds *prometheus.HistogramVec

	UpstreamRequests *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec

	LockWaitSeconds prometheus.Histogram
	LockTimeouts    prometheus.Counter
}

// NewRegistry constructs and registers every metric against reg. Pass
// prometheus.NewRegistry() for an isolated test registry, or
// prometheus.DefaultRegisterer to expose metrics on the process-wide
// /metrics endpoint.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilecached_cache_hits_total",
			Help: "Total number of tile creations skipped because the tile was found cached after acquiring its lock.",
		}, []string{"layer"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilecached_cache_misses_total",
			Help: "Total number of tile requests that required upstream creation.",
		}, []string{"layer"}),
		TilesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilecached_tiles_created_total",
			Help: "Total number of cache tiles written to disk.",
		}, []string{"layer"}),
		CreateSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tilecached_tile_create_seconds",
			Help:    "Time spent fetching and storing one tile or meta-tile unit.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"layer"}),
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilecached_upstream_requests_total",
			Help: "Total number of requests made to an upstream tile/map source.",
		}, []string{"source"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilecached_upstream_errors_total",
			Help: "Total number of failed upstream source requests.",
		}, []string{"source"}),
		LockWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tilecached_lock_wait_seconds",
			Help:    "Time spent waiting to acquire a per-tile advisory lock.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		LockTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tilecached_lock_timeouts_total",
			Help: "Total number of advisory-lock acquisitions that gave up after timing out.",
		}),
	}
}

// ObserveLockWait records how long a lock acquisition took.
func (r *Registry) ObserveLockWait(since time.Time) {
	if r == nil {
		return
	}
	r.LockWaitSeconds.Observe(time.Since(since).Seconds())
}
