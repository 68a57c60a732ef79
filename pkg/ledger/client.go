// Package ledger provides the HTTP client for the ledger gateway, the slow
// authoritative source of asset records, with retry and error classification.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for ledger gateway operations.
var (
	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_requests_total",
		Help: "Total ledger gateway requests by operation and status",
	}, []string{"operation", "status"})

	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_request_duration_seconds",
		Help:    "Ledger gateway request duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation"})
)

// Reader reads authoritative records from the ledger.
type Reader interface {
	Read(ctx context.Context, id string) (Record, error)
}

// Submitter submits mutating transactions to the ledger.
type Submitter interface {
	Submit(ctx context.Context, txName string, args ...string) (json.RawMessage, error)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the ledger REST gateway (e.g. "http://localhost:3000").
	BaseURL string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry configures retries of server and network failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Client talks to the ledger gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	logger     zerolog.Logger
}

// New creates a new ledger client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ledger base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse ledger base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		retry:      cfg.Retry,
		logger:     log.With().Str("component", "ledger-client").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Read fetches the asset with the given id.
// Returns ErrNotFound when the ledger reports no such asset.
func (c *Client) Read(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return nil, fmt.Errorf("asset id is required")
	}

	endpoint := c.baseURL + "/assets/" + url.PathEscape(id)

	var body []byte
	err := c.do(ctx, "read", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, &body)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var record Record
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", id, err)
	}
	return record, nil
}

// transactionRequest is the wire body for POST /transactions.
type transactionRequest struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

// Submit submits a named transaction and returns the raw gateway result.
func (c *Client) Submit(ctx context.Context, txName string, args ...string) (json.RawMessage, error) {
	if txName == "" {
		return nil, fmt.Errorf("transaction name is required")
	}
	if args == nil {
		args = []string{}
	}

	payload, err := json.Marshal(transactionRequest{Name: txName, Args: args})
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}

	// One id per logical submission so the gateway can de-duplicate retries.
	requestID := uuid.NewString()
	endpoint := c.baseURL + "/transactions"

	var body []byte
	err = c.do(ctx, "submit", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		return req, nil
	}, &body)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("tx", txName).
		Str("request_id", requestID).
		Msg("Ledger transaction submitted")

	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(body), nil
}

// do executes a request built by newReq with retry and stores the response body in out.
func (c *Client) do(ctx context.Context, operation string, newReq func() (*http.Request, error), out *[]byte) error {
	start := time.Now()
	defer func() {
		ledgerRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	return retryWithBackoff(ctx, c.retry, c.logger, func() error {
		req, err := newReq()
		if err != nil {
			return &LedgerError{Operation: operation, ErrorClass: ErrorClassClient, Message: "build request", Err: err}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			ledgerRequestsTotal.WithLabelValues(operation, "network_error").Inc()
			c.logger.Warn().Err(err).Str("operation", operation).Msg("Ledger request failed")
			return &LedgerError{Operation: operation, ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		ledgerRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &LedgerError{Operation: operation, StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
		}

		if resp.StatusCode == http.StatusNotFound && operation == "read" {
			return ErrNotFound
		}

		if resp.StatusCode >= 400 {
			class := classifyStatus(resp.StatusCode)
			c.logger.Warn().
				Str("operation", operation).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Ledger gateway error")
			return &LedgerError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				ErrorClass: class,
				Message:    strings.TrimSpace(string(body)),
			}
		}

		*out = body
		return nil
	})
}
