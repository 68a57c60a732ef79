package precache

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/ledger-cache/pkg/cache"
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Sink receives records the engine decided to cache.
type Sink interface {
	PopulateWithTTL(ctx context.Context, key cache.CacheKey, payload ledger.Record, class cache.ConsumerClass, ttlSeconds int) error
}

// Config holds warmer configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel ledger reads.
	MaxConcurrency int

	// Timeout per record (read + cache write).
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// Outcome is the result for one record.
type Outcome struct {
	ID       string   `json:"id"`
	Decision Decision `json:"decision"`
	Cached   bool     `json:"cached"`
	Error    string   `json:"error,omitempty"`
}

// Report summarizes a warm run.
type Report struct {
	Cached   int       `json:"cached"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

// Warmer reads records from the ledger and pre-caches those the engine admits.
type Warmer struct {
	reader ledger.Reader
	engine *Engine
	sink   Sink
	config Config
	logger zerolog.Logger
}

// NewWarmer creates a new warmer.
func NewWarmer(reader ledger.Reader, engine *Engine, sink Sink, config Config) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Warmer{
		reader: reader,
		engine: engine,
		sink:   sink,
		config: config,
		logger: log.With().Str("component", "precache").Logger(),
	}
}

// Apply evaluates an already-read record and writes it to the cache when admitted.
// Pre-cached entries are attributed to the default consumer class.
func (w *Warmer) Apply(ctx context.Context, id string, record ledger.Record) (Decision, error) {
	d := w.engine.Evaluate(record)
	if !d.ShouldCache {
		w.logger.Debug().
			Str("id", id).
			Str("rule", d.MatchedRule).
			Msg("Record not pre-cached")
		return d, nil
	}

	if err := w.sink.PopulateWithTTL(ctx, cache.KeyFor(id), record, cache.ClassDefault, d.TTLSeconds); err != nil {
		return d, fmt.Errorf("pre-cache %s: %w", id, err)
	}

	w.logger.Debug().
		Str("id", id).
		Str("rule", d.MatchedRule).
		Int("ttl", d.TTLSeconds).
		Msg("Record pre-cached")
	return d, nil
}

// Warm reads every id in parallel and pre-caches admitted records.
// Per-record failures are reported, not returned; the error is non-nil only
// when ctx ends before the batch completes.
func (w *Warmer) Warm(ctx context.Context, ids []string) (*Report, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.MaxConcurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			outcomes[i] = w.warmOne(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			report.Failed++
		case o.Cached:
			report.Cached++
		default:
			report.Skipped++
		}
	}

	w.logger.Info().
		Int("records", len(ids)).
		Int("cached", report.Cached).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("duration", time.Since(start)).
		Msg("Pre-cache warm complete")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("warm interrupted: %w", err)
	}
	return report, nil
}

func (w *Warmer) warmOne(ctx context.Context, id string) Outcome {
	out := Outcome{ID: id}

	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		return out
	}

	recordCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	record, err := w.reader.Read(recordCtx, id)
	if err != nil {
		w.logger.Warn().Err(err).Str("id", id).Msg("Pre-cache read failed")
		out.Error = err.Error()
		return out
	}

	d, err := w.Apply(recordCtx, id, record)
	out.Decision = d
	if err != nil {
		w.logger.Warn().Err(err).Str("id", id).Msg("Pre-cache write failed")
		out.Error = err.Error()
		return out
	}
	out.Cached = d.ShouldCache
	return out
}
