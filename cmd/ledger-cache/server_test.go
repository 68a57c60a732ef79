package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/ledger-cache/internal/testutil"
	"github.com/Sternrassler/ledger-cache/pkg/cache"
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
	"github.com/Sternrassler/ledger-cache/pkg/precache"
	"github.com/Sternrassler/ledger-cache/pkg/query"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	mock   *testutil.MockLedger
	mr     *miniredis.Miniredis
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mock := testutil.NewMockLedger()
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := cache.NewRedisStore(client)

	lcfg := ledger.DefaultConfig(mock.URL())
	lcfg.Retry = ledger.RetryConfig{MaxAttempts: 1}
	lc, err := ledger.New(lcfg)
	require.NoError(t, err)

	manager := cache.NewManager(store, cache.DefaultTTLPolicy())
	mode, err := cache.NewModeController("adaptive")
	require.NoError(t, err)
	warmer := precache.NewWarmer(lc, precache.NewEngine(precache.DefaultRules()), manager, precache.DefaultConfig())
	svc := query.NewService(lc, manager, mode, warmer, query.Config{PrecacheOnWrite: true})

	return &testServer{mock: mock, mr: mr, server: NewServer(svc, store)}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.Router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	ts := newTestServer(t)

	t.Run("ready", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not_ready_store_down", func(t *testing.T) {
		down := NewServer(nil, pingFunc(func(context.Context) error { return errors.New("connection refused") }))
		w := httptest.NewRecorder()
		down.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestQueryEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.SetAsset("asset1", map[string]any{"ID": "asset1", "Owner": "Central Warehouse", "AppraisedValue": 50})

	w := ts.do(t, http.MethodGet, "/assets/asset1?consumer=distributor", "")
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[query.Result](t, w)
	assert.Equal(t, query.SourceLedger, first.Source)
	assert.Equal(t, cache.ClassDistributor, first.ConsumerClass)
	assert.Equal(t, 2700*time.Second, ts.mr.TTL(cache.KeyFor("asset1").String()))

	w = ts.do(t, http.MethodGet, "/assets/asset1?consumer=distributor", "")
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[query.Result](t, w)
	assert.Equal(t, query.SourceCache, second.Source)
	assert.Equal(t, "Central Warehouse", second.Data.Holder())
}

func TestQueryEndpoint_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.SetResponse("/assets/broken", testutil.NewServerErrorResponse())

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "not_found", path: "/assets/ghost", status: http.StatusNotFound},
		{name: "ledger_failure", path: "/assets/broken", status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decode[errorBody](t, w).Error)
		})
	}
}

func TestSubmitEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.SetAsset("asset1", map[string]any{"Owner": "Bob"})
	ts.mock.OnSubmit(func(tx testutil.SubmittedTx) {
		ts.mock.SetAsset(tx.Args[0], map[string]any{"Owner": tx.Args[1]})
	})

	w := ts.do(t, http.MethodGet, "/assets/asset1?consumer=retailer", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/transactions", `{"assetId":"asset1","name":"TransferAsset","args":["asset1","North Warehouse"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":{"status":"committed"}}`, w.Body.String())

	// Re-read through the rule engine as a warehoused record.
	assert.Equal(t, 3600*time.Second, ts.mr.TTL(cache.KeyFor("asset1").String()))
	require.Len(t, ts.mock.Submitted(), 1)
	assert.NotEmpty(t, ts.mock.Submitted()[0].RequestID)
}

func TestSubmitEndpoint_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
		{name: "missing_name", body: `{"assetId":"a"}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/transactions", tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Empty(t, ts.mock.Submitted())
}

func TestSubmitEndpoint_LedgerRejects(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.SetResponse("/transactions", testutil.NewBadRequestResponse())

	w := ts.do(t, http.MethodPost, "/transactions", `{"assetId":"a","name":"TransferAsset","args":["a","b"]}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestModeEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/cache/mode", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cache.ModeAdaptive, decode[modeBody](t, w).Mode)

	w = ts.do(t, http.MethodPut, "/cache/mode", `{"mode":"simple"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cache.ModeSimple, decode[modeBody](t, w).Mode)

	w = ts.do(t, http.MethodPut, "/cache/mode", `{"mode":"turbo"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, cache.ModeSimple, decode[modeBody](t, w).Mode)

	w = ts.do(t, http.MethodGet, "/cache/mode", "")
	assert.Equal(t, cache.ModeSimple, decode[modeBody](t, w).Mode)
}

func TestStatsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.SetAsset("asset1", map[string]any{"Owner": "Bob"})

	for i := 0; i < 2; i++ {
		w := ts.do(t, http.MethodGet, "/assets/asset1?consumer=manufacturer", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(t, http.MethodGet, "/cache/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[query.Stats](t, w)
	assert.Equal(t, int64(1), stats.Classes[cache.ClassManufacturer].Hits)
	assert.Equal(t, int64(1), stats.Classes[cache.ClassManufacturer].Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
	assert.Equal(t, cache.ModeAdaptive, stats.Mode)

	w = ts.do(t, http.MethodPost, "/cache/stats/reset", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/cache/stats", "")
	stats = decode[query.Stats](t, w)
	assert.Equal(t, cache.ClassStats{}, stats.Classes[cache.ClassManufacturer])
}

func TestInvalidateAndFlushEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.SetAsset("a", map[string]any{"Owner": "Bob"})
	ts.mock.SetAsset("b", map[string]any{"Owner": "Bob"})

	for _, id := range []string{"a", "b"} {
		w := ts.do(t, http.MethodGet, "/assets/"+id, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.NoError(t, ts.mr.Set("unrelated", "keep"))

	w := ts.do(t, http.MethodDelete, "/cache/a", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, ts.mr.Exists(cache.KeyFor("a").String()))
	assert.True(t, ts.mr.Exists(cache.KeyFor("b").String()))

	w = ts.do(t, http.MethodPost, "/cache/flush", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"unrelated"}, ts.mr.Keys())
}

func TestWarmEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.SetAsset("vaulted", map[string]any{"Owner": "Vault 3"})
	ts.mock.SetAsset("moving", map[string]any{"Owner": "Freight Co", "AppraisedValue": 10})

	w := ts.do(t, http.MethodPost, "/precache/warm", `{"ids":["vaulted","moving","missing"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	report := decode[precache.Report](t, w)
	assert.Equal(t, 1, report.Cached)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, ts.mr.Exists(cache.KeyFor("vaulted").String()))

	w = ts.do(t, http.MethodPost, "/precache/warm", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.SetAsset("asset1", map[string]any{"Owner": "Bob"})

	w := ts.do(t, http.MethodGet, "/assets/asset1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "ledger_requests_total")
	assert.Contains(t, body, "ledger_cache_misses_total")
}
