package cache

import (
	"github.com/Sternrassler/spycheck/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// factory registers on the shared spycheck registry.
var factory = promauto.With(metrics.Registry)

var (
	// CacheHits tracks cache hits
	CacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "spycheck_cache_hits_total",
			Help: "Total number of lookup cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "spycheck_cache_misses_total",
			Help: "Total number of lookup cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spycheck_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
