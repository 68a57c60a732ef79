package precache

import (
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrecacheDecisions tracks rule engine outcomes.
var PrecacheDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_precache_decisions_total",
		Help: "Total number of pre-cache decisions by matched rule and outcome",
	},
	[]string{"rule", "decision"}, // decision: "cache", "reject", "none"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	ShouldCache bool `json:"shouldCache"`
	TTLSeconds  int  `json:"ttlSeconds"`

	// MatchedRule is the name of the deciding rule, or "" when nothing matched.
	MatchedRule string `json:"matchedRuleName,omitempty"`
}

// Engine evaluates a fixed rule table. It holds no other state and is safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over rules, kept in the given order.
func NewEngine(rules []Rule) *Engine {
	table := make([]Rule, len(rules))
	copy(table, rules)
	return &Engine{rules: table}
}

// Rules returns a copy of the rule table.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate runs the rule table against record.
func (e *Engine) Evaluate(record ledger.Record) Decision {
	var d Decision
	positive := false

	for _, rule := range e.rules {
		if !rule.matches(record) {
			continue
		}

		if rule.Negative {
			d = Decision{ShouldCache: false, TTLSeconds: 0, MatchedRule: rule.Name}
			PrecacheDecisions.WithLabelValues(rule.Name, "reject").Inc()
			return d
		}

		if !positive {
			positive = true
			d = Decision{ShouldCache: true, TTLSeconds: rule.CacheDurationSeconds, MatchedRule: rule.Name}
		}
	}

	if positive {
		PrecacheDecisions.WithLabelValues(d.MatchedRule, "cache").Inc()
	} else {
		PrecacheDecisions.WithLabelValues("", "none").Inc()
	}
	return d
}
