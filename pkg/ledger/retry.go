package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	ledgerRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_retries_total",
		Help: "Total number of ledger retry attempts by error class",
	}, []string{"error_class"})

	ledgerRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_retry_exhausted_total",
		Help: "Total number of times ledger retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// errorClassOf extracts the error class from err, treating unknown errors as network failures.
func errorClassOf(err error) ErrorClass {
	var lerr *LedgerError
	if errors.As(err, &lerr) {
		return lerr.ErrorClass
	}
	if errors.Is(err, ErrNotFound) {
		return ErrorClassClient
	}
	return ErrorClassNetwork
}

// retryWithBackoff executes fn with exponential backoff retry logic.
// Only server and network failures are retried. Jitter is ±20%.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Ledger request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		class := errorClassOf(err)
		if !shouldRetry(class) {
			return err
		}

		if attempt >= cfg.MaxAttempts {
			ledgerRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
			break
		}

		ledgerRetriesTotal.WithLabelValues(string(class)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying ledger request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	if cfg.MaxAttempts == 1 {
		return lastErr
	}

	logger.Warn().
		Err(lastErr).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Ledger retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
