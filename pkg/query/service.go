// Package query orchestrates reads and writes against the ledger through the cache:
// lookup, fetch on miss, populate, and invalidation after mutating transactions.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/ledger-cache/pkg/cache"
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
	"github.com/Sternrassler/ledger-cache/pkg/precache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Source tells where a query result came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceLedger Source = "blockchain"
)

// Result is the response of a query by id.
type Result struct {
	Source        Source              `json:"source"`
	LatencyMillis float64             `json:"latency"`
	Data          ledger.Record       `json:"data"`
	ConsumerClass cache.ConsumerClass `json:"consumerClass"`
}

// Stats is the response of a stats query.
type Stats struct {
	Classes map[cache.ConsumerClass]cache.ClassStats `json:"classes"`
	HitRate float64                                  `json:"hitRate"`
	Mode    cache.Mode                               `json:"mode"`
}

// Ledger is the part of the ledger client the service needs.
type Ledger interface {
	ledger.Reader
	ledger.Submitter
}

// Config holds service configuration.
type Config struct {
	// PrecacheOnWrite re-reads a record after a transaction touching it and
	// lets the rule engine decide whether to cache it straight away.
	PrecacheOnWrite bool
}

// Service serves record queries through the cache.
type Service struct {
	ledger  Ledger
	cache   *cache.Manager
	mode    *cache.ModeController
	warmer  *precache.Warmer
	config  Config
	logger  zerolog.Logger
	nowFunc func() time.Time
}

// NewService creates a query service. warmer may be nil when pre-caching is not used.
func NewService(l Ledger, manager *cache.Manager, mode *cache.ModeController, warmer *precache.Warmer, cfg Config) *Service {
	if l == nil || manager == nil || mode == nil {
		panic("query service requires ledger, cache manager and mode controller")
	}
	return &Service{
		ledger:  l,
		cache:   manager,
		mode:    mode,
		warmer:  warmer,
		config:  cfg,
		logger:  log.With().Str("component", "query").Logger(),
		nowFunc: time.Now,
	}
}

// Query returns the record with the given id for a consumer class.
// Ledger failures are returned; cache failures degrade to a ledger read.
func (s *Service) Query(ctx context.Context, id, consumerClass string) (*Result, error) {
	start := s.nowFunc()
	class := cache.NormalizeClass(consumerClass)
	mode := s.mode.Get()
	key := cache.KeyFor(id)

	if mode != cache.ModeDisabled {
		entry, err := s.cache.Lookup(ctx, key)
		switch {
		case err == nil:
			return &Result{
				Source:        SourceCache,
				LatencyMillis: s.since(start),
				Data:          entry.Payload,
				ConsumerClass: class,
			}, nil
		case errors.Is(err, cache.ErrCacheMiss):
		default:
			s.logger.Warn().Err(err).Str("id", id).Msg("Cache lookup error, reading from ledger")
		}
		s.cache.RecordMiss(class)
	}

	record, err := s.ledger.Read(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read %s from ledger: %w", id, err)
	}

	if err := s.cache.Populate(ctx, key, record, class, mode); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("Failed to cache record")
	}

	return &Result{
		Source:        SourceLedger,
		LatencyMillis: s.since(start),
		Data:          record,
		ConsumerClass: class,
	}, nil
}

// Submit sends a transaction to the ledger and invalidates the record it touched.
// With PrecacheOnWrite the fresh record is offered to the rule engine.
func (s *Service) Submit(ctx context.Context, id, txName string, args ...string) (json.RawMessage, error) {
	result, err := s.ledger.Submit(ctx, txName, args...)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", txName, err)
	}

	if id == "" {
		return result, nil
	}

	if err := s.cache.Invalidate(ctx, cache.KeyFor(id)); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("Failed to invalidate after transaction")
	}

	if s.config.PrecacheOnWrite && s.warmer != nil {
		s.precache(ctx, id)
	}

	return result, nil
}

func (s *Service) precache(ctx context.Context, id string) {
	record, err := s.ledger.Read(ctx, id)
	if err != nil {
		// Deleted by the transaction, or the ledger is unhappy; either way nothing to cache.
		s.logger.Debug().Err(err).Str("id", id).Msg("Skipping pre-cache after transaction")
		return
	}
	if _, err := s.warmer.Apply(ctx, id, record); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("Pre-cache after transaction failed")
	}
}

// Warm pre-caches the given ids through the rule engine.
func (s *Service) Warm(ctx context.Context, ids []string) (*precache.Report, error) {
	if s.warmer == nil {
		return nil, errors.New("pre-cache warmer not configured")
	}
	return s.warmer.Warm(ctx, ids)
}

// Invalidate drops the cached copy of id.
func (s *Service) Invalidate(ctx context.Context, id string) error {
	return s.cache.Invalidate(ctx, cache.KeyFor(id))
}

// Flush drops every cached record.
func (s *Service) Flush(ctx context.Context) error {
	return s.cache.Flush(ctx)
}

// Mode returns the active cache mode.
func (s *Service) Mode() cache.Mode {
	return s.mode.Get()
}

// SetMode switches the active cache mode. Unknown literals are rejected with cache.ErrInvalidMode.
func (s *Service) SetMode(mode string) (cache.Mode, error) {
	m, err := s.mode.Set(mode)
	if err != nil {
		return m, err
	}
	s.logger.Info().Str("mode", string(m)).Msg("Cache mode changed")
	return m, nil
}

// Stats returns per-class counters, the aggregate hit rate and the active mode.
func (s *Service) Stats() Stats {
	snap := s.cache.Stats()
	return Stats{
		Classes: snap.Classes,
		HitRate: snap.HitRate,
		Mode:    s.mode.Get(),
	}
}

// ResetStats zeroes all counters.
func (s *Service) ResetStats() {
	s.cache.ResetStats()
	s.logger.Info().Msg("Cache stats reset")
}

func (s *Service) since(start time.Time) float64 {
	return float64(s.nowFunc().Sub(start).Microseconds()) / 1000
}
