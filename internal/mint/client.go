// Package mint talks to the external mint authority that issues reward
// tokens. Requests are idempotent per match id.
package mint

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCircuitOpen   = errors.New("mint_circuit_open")
	ErrRejected      = errors.New("mint_rejected")
	ErrNotConfigured = errors.New("mint_not_configured")
)

var (
	metricMintRequestsTotal    = expvar.NewInt("mint_requests_total")
	metricMintFailedTotal      = expvar.NewInt("mint_failed_total")
	metricMintCircuitOpenTotal = expvar.NewInt("mint_circuit_open_total")
)

type Request struct {
	MatchID string          `json:"matchId"`
	Player  string          `json:"player"`
	Amount  decimal.Decimal `json:"amount"`
}

type Receipt struct {
	Success     bool   `json:"success"`
	TxReference string `json:"txReference"`
	Error       string `json:"error,omitempty"`
}

type Config struct {
	BaseURL             string
	APIKey              string
	Timeout             time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
}

type Client struct {
	http    *httpClient
	baseURL string
	apiKey  string
	breaker *breaker
	now     func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}
	return &Client{
		http:    newHTTPClient(cfg.Timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		breaker: &breaker{threshold: cfg.FailureThreshold, openFor: cfg.CircuitOpenDuration},
		now:     time.Now,
	}, nil
}

// Mint asks the authority to issue req.Amount to req.Player. The match id is
// sent as Idempotency-Key so retries never double-mint.
func (c *Client) Mint(ctx context.Context, req Request) (Receipt, error) {
	if err := c.breaker.beforeSend(c.now()); err != nil {
		metricMintCircuitOpenTotal.Add(1)
		return Receipt{}, err
	}
	metricMintRequestsTotal.Add(1)

	headers := map[string]string{"Idempotency-Key": req.MatchID}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	status, body, err := c.http.postJSON(ctx, c.baseURL+"/mint", headers, req)
	if err != nil {
		c.fail()
		return Receipt{}, fmt.Errorf("mint %s: %w", req.MatchID, err)
	}

	var rec Receipt
	if err := json.Unmarshal(body, &rec); err != nil {
		c.fail()
		return Receipt{}, fmt.Errorf("mint %s: decode response (status %d): %w", req.MatchID, status, err)
	}
	if !rec.Success || rec.TxReference == "" {
		c.fail()
		msg := rec.Error
		if msg == "" {
			msg = "no transaction reference"
		}
		return rec, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	c.breaker.afterSuccess()
	return rec, nil
}

func (c *Client) fail() {
	metricMintFailedTotal.Add(1)
	c.breaker.afterFailure(c.now())
}
