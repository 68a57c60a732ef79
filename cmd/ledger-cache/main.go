// Command ledger-cache serves ledger asset queries through a context-aware Redis cache.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/ledger-cache/pkg/cache"
	"github.com/Sternrassler/ledger-cache/pkg/config"
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
	"github.com/Sternrassler/ledger-cache/pkg/logging"
	"github.com/Sternrassler/ledger-cache/pkg/precache"
	"github.com/Sternrassler/ledger-cache/pkg/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	store := cache.NewRedisStore(redisClient)
	if err := store.Ping(ctx); err != nil {
		// The service degrades to ledger reads while Redis is away.
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis not reachable at startup")
	} else {
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	}

	// Ledger gateway
	ledgerCfg := ledger.DefaultConfig(cfg.LedgerURL)
	ledgerCfg.Timeout = cfg.LedgerTimeout
	ledgerCfg.Retry.MaxAttempts = cfg.LedgerMaxAttempts
	ledgerClient, err := ledger.New(ledgerCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create ledger client")
	}

	// Cache, pre-cache and query service
	manager := cache.NewManager(store, cache.DefaultTTLPolicy())
	mode, err := cache.NewModeController(cfg.CacheMode)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid cache mode")
	}

	warmCfg := precache.DefaultConfig()
	warmCfg.MaxConcurrency = cfg.WarmConcurrency
	warmer := precache.NewWarmer(ledgerClient, precache.NewEngine(precache.DefaultRules()), manager, warmCfg)

	svc := query.NewService(ledgerClient, manager, mode, warmer, query.Config{
		PrecacheOnWrite: cfg.PrecacheOnWrite,
	})

	if len(cfg.PrecacheIDs) > 0 {
		go func() {
			report, err := svc.Warm(ctx, cfg.PrecacheIDs)
			if err != nil {
				logger.Warn().Err(err).Msg("Startup pre-cache interrupted")
				return
			}
			logger.Info().
				Int("cached", report.Cached).
				Int("skipped", report.Skipped).
				Int("failed", report.Failed).
				Msg("Startup pre-cache finished")
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewServer(svc, store).Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", srv.Addr).
		Str("mode", string(mode.Get())).
		Str("ledger", cfg.LedgerURL).
		Msg("Starting ledger cache server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}
