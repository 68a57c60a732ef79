package cache

import (
	"time"

	"github.com/Sternrassler/ledger-cache/pkg/ledger"
)

// CacheEntry is the unit stored in the expiring store.
type CacheEntry struct {
	// Key is the store key the entry was written under.
	Key string `json:"key"`

	// Payload is the cached ledger record.
	Payload ledger.Record `json:"payload"`

	// ContentHash is the integrity digest of Payload (see Hash).
	ContentHash string `json:"contentHash"`

	// ConsumerClass is the class the TTL was computed for.
	ConsumerClass ConsumerClass `json:"consumerClass"`

	// CachedAtEpochMillis is the write timestamp.
	CachedAtEpochMillis int64 `json:"cachedAtEpochMillis"`

	// TTLSeconds is the expiry applied at write time.
	TTLSeconds int `json:"ttlSeconds"`

	// Mode is the policy that produced the entry.
	Mode Mode `json:"mode"`
}

// CachedAt returns the write timestamp as a time.Time.
func (e *CacheEntry) CachedAt() time.Time {
	return time.UnixMilli(e.CachedAtEpochMillis)
}

// ExpiresAt returns when the store is expected to drop the entry.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.CachedAt().Add(time.Duration(e.TTLSeconds) * time.Second)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt())
	if ttl < 0 {
		return 0
	}
	return ttl
}
