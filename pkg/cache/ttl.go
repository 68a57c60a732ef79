package cache

import (
	"math"
	"strings"

	"github.com/Sternrassler/ledger-cache/pkg/ledger"
)

// Holder substrings used to infer asset state. Matching is case-insensitive.
var (
	TransitMarkers = []string{"transit", "shipping", "shipped", "carrier", "logistics", "freight"}
	StableMarkers  = []string{"warehouse", "delivered", "store", "storage", "vault"}
)

// HolderMatches reports whether holder contains any of markers, ignoring case.
func HolderMatches(holder string, markers []string) bool {
	if holder == "" {
		return false
	}
	h := strings.ToLower(holder)
	for _, m := range markers {
		if strings.Contains(h, m) {
			return true
		}
	}
	return false
}

// TTLPolicy computes time-to-live values for cache entries.
type TTLPolicy struct {
	// BaseTTL maps a consumer class to its base TTL in seconds.
	// Classes missing from the table use the ClassDefault entry.
	BaseTTL map[ConsumerClass]int

	// SimpleTTL is the constant TTL used in simple mode.
	SimpleTTL int

	// TransitFactor applies when the holder indicates the asset is moving.
	TransitFactor float64

	// StableFactor applies when the holder indicates a terminal or stored state.
	StableFactor float64

	// HighValueFactor applies when the appraised value exceeds ValueThreshold.
	HighValueFactor float64
	ValueThreshold  float64
}

// DefaultTTLPolicy returns the production TTL table.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		BaseTTL: map[ConsumerClass]int{
			ClassManufacturer: 3600,
			ClassDistributor:  1800,
			ClassRetailer:     900,
			ClassDefault:      600,
		},
		SimpleTTL:       300,
		TransitFactor:   0.5,
		StableFactor:    1.5,
		HighValueFactor: 0.9,
		ValueThreshold:  1000,
	}
}

// Base returns the base TTL for class, falling back to the default entry.
func (p TTLPolicy) Base(class ConsumerClass) int {
	if ttl, ok := p.BaseTTL[class]; ok {
		return ttl
	}
	return p.BaseTTL[ClassDefault]
}

// Compute returns the TTL in seconds for payload requested by class under mode.
// Missing or malformed payload fields simply skip their adjustment.
func (p TTLPolicy) Compute(payload ledger.Record, class ConsumerClass, mode Mode) int {
	switch mode {
	case ModeSimple:
		return p.SimpleTTL
	case ModeAdaptive:
	default:
		return 0
	}

	ttl := p.Base(class)

	holder := payload.Holder()
	switch {
	case HolderMatches(holder, TransitMarkers):
		ttl = scale(ttl, p.TransitFactor)
	case HolderMatches(holder, StableMarkers):
		ttl = scale(ttl, p.StableFactor)
	}

	if value, ok := payload.AppraisedValue(); ok && value > p.ValueThreshold {
		ttl = scale(ttl, p.HighValueFactor)
	}

	if ttl < 0 {
		return 0
	}
	return ttl
}

func scale(ttl int, factor float64) int {
	return int(math.Floor(float64(ttl) * factor))
}
