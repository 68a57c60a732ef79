package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/ledger-cache/pkg/ledger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrCacheMiss indicates the requested key was not found in cache,
// or was found corrupted and evicted.
var ErrCacheMiss = errors.New("cache miss")

// Manager handles caching operations: lookup, verify, populate, invalidate.
// It owns the stats tracker; the active mode is passed in per call.
type Manager struct {
	store  Store
	policy TTLPolicy
	stats  *StatsTracker
	logger zerolog.Logger
	now    func() time.Time
}

// NewManager creates a new cache manager on store using policy for TTLs.
func NewManager(store Store, policy TTLPolicy) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Manager{
		store:  store,
		policy: policy,
		stats:  NewStatsTracker(),
		logger: log.With().Str("component", "cache").Logger(),
		now:    time.Now,
	}
}

// Policy returns the TTL policy in use.
func (m *Manager) Policy() TTLPolicy {
	return m.policy
}

// Lookup retrieves and verifies the entry stored under key.
// Returns ErrCacheMiss if the key is absent, or if the entry fails decoding or
// integrity verification, in which case it is deleted from the store.
// Any other error means the store itself failed.
func (m *Manager) Lookup(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	data, err := m.store.Get(ctx, cacheKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("store get: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil || entry.Key != cacheKey || !Verify(entry) {
		CacheCorrupted.Inc()
		m.logger.Warn().
			Err(err).
			Str("key", cacheKey).
			Msg("Cache entry failed integrity check, evicting")
		m.evict(ctx, cacheKey)
		return nil, ErrCacheMiss
	}

	class := NormalizeClass(string(entry.ConsumerClass))
	m.stats.RecordHit(class)
	CacheHits.WithLabelValues(string(class)).Inc()

	m.logger.Debug().
		Str("key", cacheKey).
		Str("consumer_class", string(class)).
		Int("ttl", entry.TTLSeconds).
		Msg("Cache hit")

	return entry, nil
}

// Populate computes a TTL for payload and writes it under key.
// It is a no-op in ModeDisabled.
func (m *Manager) Populate(ctx context.Context, key CacheKey, payload ledger.Record, class ConsumerClass, mode Mode) error {
	switch mode {
	case ModeDisabled:
		return nil
	case ModeAdaptive, ModeSimple:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	class = NormalizeClass(string(class))
	ttl := m.policy.Compute(payload, class, mode)
	return m.write(ctx, key, payload, class, mode, ttl)
}

// PopulateWithTTL writes payload under key with a TTL decided elsewhere
// (the pre-cache rule engine). Entries are labelled ModePrecache.
func (m *Manager) PopulateWithTTL(ctx context.Context, key CacheKey, payload ledger.Record, class ConsumerClass, ttlSeconds int) error {
	return m.write(ctx, key, payload, NormalizeClass(string(class)), ModePrecache, ttlSeconds)
}

func (m *Manager) write(ctx context.Context, key CacheKey, payload ledger.Record, class ConsumerClass, mode Mode, ttl int) error {
	cacheKey := key.String()

	if ttl <= 0 {
		// A zero expiry would persist forever in the store.
		m.logger.Debug().Str("key", cacheKey).Str("mode", string(mode)).Msg("Non-positive TTL, not caching")
		return nil
	}

	sum, err := Hash(payload)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("hash payload: %w", err)
	}

	entry := CacheEntry{
		Key:                 cacheKey,
		Payload:             payload,
		ContentHash:         sum,
		ConsumerClass:       class,
		CachedAtEpochMillis: m.now().UnixMilli(),
		TTLSeconds:          ttl,
		Mode:                mode,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.store.SetWithExpiry(ctx, cacheKey, data, time.Duration(ttl)*time.Second); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("store set: %w", err)
	}

	m.stats.ObserveTTL(class, ttl)
	CacheTTL.WithLabelValues(string(mode)).Observe(float64(ttl))

	m.logger.Debug().
		Str("key", cacheKey).
		Str("consumer_class", string(class)).
		Str("mode", string(mode)).
		Int("ttl", ttl).
		Msg("Cached record")

	return nil
}

// Invalidate removes key from the store. Invalidating an absent key is not an error.
func (m *Manager) Invalidate(ctx context.Context, key CacheKey) error {
	if err := m.store.Delete(ctx, key.String()); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("store delete: %w", err)
	}
	return nil
}

// RecordMiss counts a miss for class. Callers invoke it when Lookup misses
// and the record has to be fetched from the ledger.
func (m *Manager) RecordMiss(class ConsumerClass) {
	class = NormalizeClass(string(class))
	m.stats.RecordMiss(class)
	CacheMisses.WithLabelValues(string(class)).Inc()
}

// Stats returns per-class counters and the aggregate hit rate.
func (m *Manager) Stats() StatsSnapshot {
	return m.stats.Snapshot()
}

// ResetStats zeroes all counters.
func (m *Manager) ResetStats() {
	m.stats.Reset()
}

// Flush removes every cached entry.
func (m *Manager) Flush(ctx context.Context) error {
	if err := m.store.FlushAll(ctx); err != nil {
		CacheErrors.WithLabelValues("flush").Inc()
		return fmt.Errorf("store flush: %w", err)
	}
	return nil
}

func (m *Manager) evict(ctx context.Context, cacheKey string) {
	if err := m.store.Delete(ctx, cacheKey); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		m.logger.Warn().Err(err).Str("key", cacheKey).Msg("Failed to evict corrupted entry")
	}
}

// decodeEntry unmarshals a stored entry, keeping payload numbers verbatim.
func decodeEntry(data []byte) (*CacheEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var entry CacheEntry
	if err := dec.Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
