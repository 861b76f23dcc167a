// Package orders submits execution groups to the external order system.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/pkg/httpretry"
)

// ErrRejected is returned when the order system refuses a request outright.
// Retrying the same request will not help.
var ErrRejected = errors.New("order rejected")

// Config configures the order system client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the order system over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    httpretry.HTTPDoer
}

// NewClient builds a client with retrying transport.
func NewClient(cfg Config, opts ...httpretry.Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("orders: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpretry.NewRetryClient(&http.Client{Timeout: timeout}, cfg.MaxRetries, opts...),
	}, nil
}

// CreateOrder posts one group. The idempotency key goes in a header so the
// order system can return the original order for a repeated submission.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderReceipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("encode order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("submit order %s: %w", req.IdempotencyKey, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return domain.OrderReceipt{}, fmt.Errorf("%w: %s: status %d: %s", ErrRejected, req.IdempotencyKey, resp.StatusCode, snippet(raw))
	default:
		return domain.OrderReceipt{}, fmt.Errorf("submit order %s: status %d: %s", req.IdempotencyKey, resp.StatusCode, snippet(raw))
	}

	var receipt domain.OrderReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("decode order receipt: %w", err)
	}
	if receipt.OrderID == "" {
		return domain.OrderReceipt{}, fmt.Errorf("order receipt for %s has no order id", req.IdempotencyKey)
	}
	return receipt, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
