package cache

import (
	"sync/atomic"
)

// ClassStats are the counters of one consumer class.
type ClassStats struct {
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`
	TotalTTLObserved int64 `json:"totalTTLObserved"`
}

// StatsSnapshot is a point-in-time copy of all counters.
type StatsSnapshot struct {
	Classes map[ConsumerClass]ClassStats `json:"classes"`
	HitRate float64                      `json:"hitRate"`
}

type classCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
	ttl    atomic.Int64
}

// StatsTracker counts hits and misses per consumer class.
// The class table is fixed at construction, so counters are updated without locks.
// Snapshots taken under concurrent load are approximate across classes.
type StatsTracker struct {
	counters map[ConsumerClass]*classCounters
}

// NewStatsTracker creates a tracker with zeroed counters for every known class.
func NewStatsTracker() *StatsTracker {
	counters := make(map[ConsumerClass]*classCounters, len(KnownClasses()))
	for _, c := range KnownClasses() {
		counters[c] = &classCounters{}
	}
	return &StatsTracker{counters: counters}
}

func (s *StatsTracker) counter(class ConsumerClass) *classCounters {
	if c, ok := s.counters[class]; ok {
		return c
	}
	return s.counters[ClassDefault]
}

// RecordHit increments the hit counter of class.
func (s *StatsTracker) RecordHit(class ConsumerClass) {
	s.counter(class).hits.Add(1)
}

// RecordMiss increments the miss counter of class.
func (s *StatsTracker) RecordMiss(class ConsumerClass) {
	s.counter(class).misses.Add(1)
}

// ObserveTTL adds a written TTL to the running total of class.
func (s *StatsTracker) ObserveTTL(class ConsumerClass, ttlSeconds int) {
	s.counter(class).ttl.Add(int64(ttlSeconds))
}

// Snapshot returns the counters of every known class and the aggregate hit rate.
func (s *StatsTracker) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{Classes: make(map[ConsumerClass]ClassStats, len(s.counters))}

	var hits, misses int64
	for class, c := range s.counters {
		cs := ClassStats{
			Hits:             c.hits.Load(),
			Misses:           c.misses.Load(),
			TotalTTLObserved: c.ttl.Load(),
		}
		snap.Classes[class] = cs
		hits += cs.Hits
		misses += cs.Misses
	}
	snap.HitRate = hitRate(hits, misses)
	return snap
}

// HitRate returns totalHits / (totalHits + totalMisses), or 0 when nothing was looked up.
func (s *StatsTracker) HitRate() float64 {
	return s.Snapshot().HitRate
}

// Reset zeroes all counters. Classes stay in the table.
func (s *StatsTracker) Reset() {
	for _, c := range s.counters {
		c.hits.Store(0)
		c.misses.Store(0)
		c.ttl.Store(0)
	}
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
