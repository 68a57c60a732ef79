// Package testutil provides testing utilities for the ledger cache.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockLedgerResponse defines the behavior for a mock ledger endpoint response.
type MockLedgerResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// SubmittedTx records a transaction received by the mock ledger.
type SubmittedTx struct {
	Name      string   `json:"name"`
	Args      []string `json:"args"`
	RequestID string   `json:"-"`
}

// MockLedger is a configurable mock ledger gateway for testing.
// Assets are served from GET /assets/{id}; transactions are accepted on POST /transactions.
type MockLedger struct {
	server *httptest.Server

	mu        sync.RWMutex
	assets    map[string]map[string]any
	overrides map[string]MockLedgerResponse
	submitted []SubmittedTx
	onSubmit  func(tx SubmittedTx)

	readCount int
}

// NewMockLedger creates a new mock ledger server.
func NewMockLedger() *MockLedger {
	mock := &MockLedger{
		assets:    make(map[string]map[string]any),
		overrides: make(map[string]MockLedgerResponse),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockLedger) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockLedger) Close() {
	m.server.Close()
}

// SetAsset stores an asset served by GET /assets/{id}.
func (m *MockLedger) SetAsset(id string, asset map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[id] = asset
}

// SetResponse overrides the response for a path such as "/assets/a1" or "/transactions".
func (m *MockLedger) SetResponse(path string, resp MockLedgerResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = resp
}

// OnSubmit registers a hook that runs for every accepted transaction.
func (m *MockLedger) OnSubmit(fn func(tx SubmittedTx)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSubmit = fn
}

// ReadCount returns the number of asset reads served.
func (m *MockLedger) ReadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readCount
}

// Submitted returns the transactions received so far.
func (m *MockLedger) Submitted() []SubmittedTx {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SubmittedTx, len(m.submitted))
	copy(out, m.submitted)
	return out
}

func (m *MockLedger) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	override, hasOverride := m.overrides[r.URL.Path]
	m.mu.RUnlock()

	if hasOverride {
		if strings.HasPrefix(r.URL.Path, "/assets/") {
			m.mu.Lock()
			m.readCount++
			m.mu.Unlock()
		}
		if override.Delay > 0 {
			time.Sleep(override.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(override.StatusCode)
		if override.Body != "" {
			w.Write([]byte(override.Body))
		}
		return
	}

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/assets/"):
		m.handleRead(w, strings.TrimPrefix(r.URL.Path, "/assets/"))
	case r.Method == http.MethodPost && r.URL.Path == "/transactions":
		m.handleSubmit(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockLedger) handleRead(w http.ResponseWriter, id string) {
	m.mu.Lock()
	m.readCount++
	asset, ok := m.assets[id]
	m.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "asset not found"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(asset)
}

func (m *MockLedger) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var tx SubmittedTx
	if err := json.Unmarshal(body, &tx); err != nil || tx.Name == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid transaction"}`))
		return
	}
	tx.RequestID = r.Header.Get("X-Request-ID")

	m.mu.Lock()
	m.submitted = append(m.submitted, tx)
	hook := m.onSubmit
	m.mu.Unlock()

	if hook != nil {
		hook(tx)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status": "committed"}`))
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockLedgerResponse {
	return MockLedgerResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewBadRequestResponse creates a 400 Bad Request response.
func NewBadRequestResponse() MockLedgerResponse {
	return MockLedgerResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "bad request"}`,
	}
}
