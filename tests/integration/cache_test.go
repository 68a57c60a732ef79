//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/ledger-cache/internal/testutil"
	"github.com/Sternrassler/ledger-cache/pkg/cache"
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
	"github.com/Sternrassler/ledger-cache/pkg/precache"
	"github.com/Sternrassler/ledger-cache/pkg/query"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newService(t *testing.T, redisClient *redis.Client, mock *testutil.MockLedger) *query.Service {
	t.Helper()

	lc, err := ledger.New(ledger.DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatalf("Failed to create ledger client: %v", err)
	}

	manager := cache.NewManager(cache.NewRedisStore(redisClient), cache.DefaultTTLPolicy())
	mode, err := cache.NewModeController("adaptive")
	if err != nil {
		t.Fatalf("Failed to create mode controller: %v", err)
	}
	warmer := precache.NewWarmer(lc, precache.NewEngine(precache.DefaultRules()), manager, precache.DefaultConfig())

	return query.NewService(lc, manager, mode, warmer, query.Config{PrecacheOnWrite: true})
}

// TestIntegration_QueryFlow tests miss, populate, hit and expiry against a real Redis.
func TestIntegration_QueryFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockLedger()
	defer mock.Close()
	mock.SetAsset("asset1", map[string]any{"ID": "asset1", "Owner": "In Transit", "AppraisedValue": 300})

	svc := newService(t, redisClient, mock)
	ctx := context.Background()

	first, err := svc.Query(ctx, "asset1", "retailer")
	if err != nil {
		t.Fatalf("First query failed: %v", err)
	}
	if first.Source != query.SourceLedger {
		t.Errorf("Expected first query from ledger, got %s", first.Source)
	}

	ttl, err := redisClient.TTL(ctx, cache.KeyFor("asset1").String()).Result()
	if err != nil {
		t.Fatalf("Failed to read TTL: %v", err)
	}
	if ttl <= 440*time.Second || ttl > 450*time.Second {
		t.Errorf("Expected TTL close to 450s, got %v", ttl)
	}

	second, err := svc.Query(ctx, "asset1", "retailer")
	if err != nil {
		t.Fatalf("Second query failed: %v", err)
	}
	if second.Source != query.SourceCache {
		t.Errorf("Expected second query from cache, got %s", second.Source)
	}
	if mock.ReadCount() != 1 {
		t.Errorf("Expected 1 ledger read, got %d", mock.ReadCount())
	}

	stats := svc.Stats()
	if stats.HitRate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %v", stats.HitRate)
	}
}

// TestIntegration_CorruptedEntry tests that tampered entries are evicted and refetched.
func TestIntegration_CorruptedEntry(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockLedger()
	defer mock.Close()
	mock.SetAsset("asset1", map[string]any{"Owner": "Bob"})

	svc := newService(t, redisClient, mock)
	ctx := context.Background()
	key := cache.KeyFor("asset1").String()

	if _, err := svc.Query(ctx, "asset1", "manufacturer"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	tampered := `{"key":"` + key + `","payload":{"Owner":"Mallory"},"contentHash":"00"}`
	if err := redisClient.Set(ctx, key, tampered, time.Minute).Err(); err != nil {
		t.Fatalf("Failed to tamper entry: %v", err)
	}

	res, err := svc.Query(ctx, "asset1", "manufacturer")
	if err != nil {
		t.Fatalf("Query after tamper failed: %v", err)
	}
	if res.Source != query.SourceLedger || res.Data.Holder() != "Bob" {
		t.Errorf("Expected fresh ledger record, got source=%s holder=%s", res.Source, res.Data.Holder())
	}
}

// TestIntegration_SubmitAndFlush tests invalidation on write and prefix-scoped flush.
func TestIntegration_SubmitAndFlush(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockLedger()
	defer mock.Close()
	mock.SetAsset("asset1", map[string]any{"Owner": "Bob"})
	mock.OnSubmit(func(tx testutil.SubmittedTx) {
		mock.SetAsset(tx.Args[0], map[string]any{"Owner": tx.Args[1]})
	})

	svc := newService(t, redisClient, mock)
	ctx := context.Background()

	if _, err := svc.Query(ctx, "asset1", "retailer"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if _, err := svc.Submit(ctx, "asset1", "TransferAsset", "asset1", "Alice"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	res, err := svc.Query(ctx, "asset1", "retailer")
	if err != nil {
		t.Fatalf("Query after submit failed: %v", err)
	}
	if res.Data.Holder() != "Alice" {
		t.Errorf("Expected holder Alice after transfer, got %s", res.Data.Holder())
	}

	if err := redisClient.Set(ctx, "other:key", "keep", 0).Err(); err != nil {
		t.Fatalf("Failed to set unrelated key: %v", err)
	}
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if _, err := redisClient.Get(ctx, cache.KeyFor("asset1").String()).Result(); !errors.Is(err, redis.Nil) {
		t.Errorf("Expected cached record to be flushed, got %v", err)
	}
	if v, err := redisClient.Get(ctx, "other:key").Result(); err != nil || v != "keep" {
		t.Errorf("Expected unrelated key to survive flush, got %q, %v", v, err)
	}
}
