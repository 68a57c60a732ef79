package precache

import (
	"github.com/Sternrassler/ledger-cache/pkg/cache"
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
)

// HighValueThreshold is the appraised value above which assets are pre-cached.
const HighValueThreshold = 1000

// BulkSizeThreshold is the size at or above which assets are pre-cached.
const BulkSizeThreshold = 10

// DefaultRules returns the production rule table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:        "R1",
			Name:      "flagged-exclusion",
			Priority:  PriorityHigh,
			Negative:  true,
			Predicate: func(r ledger.Record) bool { return r.Bool("flagged") || r.Bool("recalled") },
		},
		{
			ID:                   "R2",
			Name:                 "high-value",
			Priority:             PriorityHigh,
			CacheDurationSeconds: 1800,
			Predicate: func(r ledger.Record) bool {
				v, ok := r.AppraisedValue()
				return ok && v > HighValueThreshold
			},
		},
		{
			ID:        "R3",
			Name:      "in-transit-exclusion",
			Priority:  PriorityMedium,
			Negative:  true,
			Predicate: func(r ledger.Record) bool { return cache.HolderMatches(r.Holder(), cache.TransitMarkers) },
		},
		{
			ID:                   "R4",
			Name:                 "warehoused",
			Priority:             PriorityMedium,
			CacheDurationSeconds: 3600,
			Predicate:            func(r ledger.Record) bool { return cache.HolderMatches(r.Holder(), cache.StableMarkers) },
		},
		{
			ID:                   "R5",
			Name:                 "bulk-size",
			Priority:             PriorityLow,
			CacheDurationSeconds: 900,
			Predicate: func(r ledger.Record) bool {
				v, ok := r.Field("size")
				if !ok {
					return false
				}
				n, ok := ledger.Number(v)
				return ok && n >= BulkSizeThreshold
			},
		},
	}
}
