package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks verified cache hits by consumer class
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_cache_hits_total",
			Help: "Total number of ledger cache hits",
		},
		[]string{"consumer_class"},
	)

	// CacheMisses tracks cache misses by consumer class
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_cache_misses_total",
			Help: "Total number of ledger cache misses",
		},
		[]string{"consumer_class"},
	)

	// CacheCorrupted tracks entries evicted after failing integrity verification
	CacheCorrupted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_cache_corrupted_total",
			Help: "Total number of cache entries evicted due to integrity mismatch",
		},
	)

	// CacheTTL tracks the TTLs written, by mode
	CacheTTL = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_cache_ttl_seconds",
			Help:    "TTL applied to written cache entries",
			Buckets: []float64{60, 300, 450, 600, 900, 1800, 3600, 5400},
		},
		[]string{"mode"}, // "adaptive", "simple", "precache"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "flush"
	)
)
