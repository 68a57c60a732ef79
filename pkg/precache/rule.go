// Package precache decides, ahead of any request, whether a ledger record
// should be materialized into the cache and for how long.
//
// Rules are evaluated in declared order. The first matching positive rule
// selects the TTL; any matching negative rule forbids caching and ends the
// evaluation. The Priority label is informational and does not affect order.
// The engine runs independently of the cache mode.
package precache

import (
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
)

// Priority is a descriptive label carried by a rule.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Predicate reports whether a rule applies to a record.
type Predicate func(record ledger.Record) bool

// Rule is a pre-cache admission policy.
type Rule struct {
	ID       string
	Name     string
	Priority Priority

	// Predicate decides whether the rule matches.
	Predicate Predicate

	// CacheDurationSeconds is the TTL selected when a positive rule wins.
	CacheDurationSeconds int

	// Negative rules forbid caching when they match.
	Negative bool
}

// matches evaluates the predicate, treating a nil predicate as no match.
func (r Rule) matches(record ledger.Record) bool {
	return r.Predicate != nil && r.Predicate(record)
}
