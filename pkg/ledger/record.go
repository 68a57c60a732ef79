package ledger

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field names inspected on ledger assets. Lookups are case-insensitive.
var (
	holderFields = []string{"owner", "holder", "location"}
	valueFields  = []string{"appraisedValue", "value"}
)

// Record is a decoded ledger asset.
// The caching layer treats it as opaque apart from a handful of well-known fields.
type Record map[string]any

// Field returns the value stored under name, matching keys case-insensitively.
// An exact match wins over a case-folded one.
func (r Record) Field(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r[name]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// String returns the named field as a string. Non-string values yield "".
func (r Record) String(name string) string {
	v, ok := r.Field(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ID returns the asset identifier ("id" or "assetId").
func (r Record) ID() string {
	if id := r.String("id"); id != "" {
		return id
	}
	return r.String("assetId")
}

// Holder returns the free-text current holder/location of the asset.
func (r Record) Holder() string {
	for _, name := range holderFields {
		if s := r.String(name); s != "" {
			return s
		}
	}
	return ""
}

// AppraisedValue returns the asset's numeric appraised value.
// The second return value is false when the field is missing or not numeric.
func (r Record) AppraisedValue() (float64, bool) {
	for _, name := range valueFields {
		v, ok := r.Field(name)
		if !ok {
			continue
		}
		if f, ok := Number(v); ok {
			return f, true
		}
	}
	return 0, false
}

// Number converts a decoded JSON value to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool reports whether the named field holds a truthy value (true or "true").
func (r Record) Bool(name string) bool {
	v, ok := r.Field(name)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		return err == nil && parsed
	default:
		return false
	}
}
