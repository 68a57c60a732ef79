// Package metrics provides the Prometheus registry used by the ledger cache.
// Metrics are defined in their respective packages (cache, precache, ledger)
// to keep packages independent; this package documents them in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry.
// All metrics are registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer serves the registry on /metrics.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - ledger_cache_hits_total{consumer_class} (Counter): Verified cache hits
//   - ledger_cache_misses_total{consumer_class} (Counter): Cache misses
//   - ledger_cache_corrupted_total (Counter): Entries evicted after integrity mismatch
//   - ledger_cache_ttl_seconds{mode} (Histogram): TTLs applied to written entries
//   - ledger_cache_errors_total{operation} (Counter): Store operation errors
//
// Pre-Cache Metrics (pkg/precache):
//   - ledger_precache_decisions_total{rule, decision} (Counter): Rule engine outcomes
//
// Ledger Metrics (pkg/ledger):
//   - ledger_requests_total{operation, status} (Counter): Gateway requests
//   - ledger_request_duration_seconds{operation} (Histogram): Gateway latency
//   - ledger_retries_total{error_class} (Counter): Retry attempts
//   - ledger_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ledger_cache_hits_total[5m])) /
//   (sum(rate(ledger_cache_hits_total[5m])) + sum(rate(ledger_cache_misses_total[5m])))
//
//   # Hit rate per consumer class
//   sum by (consumer_class) (rate(ledger_cache_hits_total[5m]))
//
//   # Corruption events
//   increase(ledger_cache_corrupted_total[1h]) > 0
//
//   # P95 ledger read latency
//   histogram_quantile(0.95, rate(ledger_request_duration_seconds_bucket{operation="read"}[5m]))
