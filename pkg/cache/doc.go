// Package cache provides the context-aware caching layer in front of the ledger,
// with a Redis backend.
//
// The cache manager implements:
//
// - Per-consumer-class TTLs adjusted by record content (adaptive mode)
// - A single fixed TTL (simple mode), or no caching at all (disabled mode)
// - Integrity digests over canonical JSON, verified on every read
// - Eager eviction of corrupted entries
// - Hit/miss counters per consumer class
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(cache.NewRedisStore(redisClient), cache.DefaultTTLPolicy())
//
//	// Look up a record
//	key := cache.KeyFor("asset42")
//	entry, err := manager.Lookup(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		manager.RecordMiss(cache.ClassRetailer)
//		// Fetch from the ledger, then:
//		_ = manager.Populate(ctx, key, record, cache.ClassRetailer, cache.ModeAdaptive)
//	}
//
// # TTL Policy
//
// In adaptive mode the base TTL of the consumer class is halved when the
// record's holder indicates the asset is in transit, or raised by half when
// it indicates a stored or delivered asset. Records appraised above the value
// threshold get a further 10% reduction. All steps floor to whole seconds.
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - ledger_cache_hits_total{consumer_class} - Verified cache hits
//   - ledger_cache_misses_total{consumer_class} - Cache misses
//   - ledger_cache_corrupted_total - Entries evicted after integrity mismatch
//   - ledger_cache_ttl_seconds{mode} - TTLs written
//   - ledger_cache_errors_total{operation} - Store operation errors
//
// # Consistency
//
// Concurrent writes to one key are last-write-wins at the store. Entries are
// disposable: losing a race costs a ledger read, never correctness.
package cache
