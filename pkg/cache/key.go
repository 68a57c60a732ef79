package cache

import (
	"strings"
)

// KeyPrefix namespaces every key this layer writes to the store.
const KeyPrefix = "ledger:"

// CacheKey identifies a cached ledger record.
type CacheKey struct {
	// AssetID is the ledger record id.
	AssetID string
}

// KeyFor returns the cache key for a ledger record id.
func KeyFor(assetID string) CacheKey {
	return CacheKey{AssetID: assetID}
}

// String generates the store key.
// Format: ledger:asset:<id>
//
// Example:
//
//	ledger:asset:asset42
func (k CacheKey) String() string {
	return KeyPrefix + "asset:" + strings.TrimSpace(k.AssetID)
}
