// Package payment charges payment methods through a Stripe-compatible HTTP API.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 1 << 20

type ChargeRequest struct {
	AmountMinor int64
	Currency    string
	Source      string
	Description string
}

// Charge is the decoded gateway receipt. Raw keeps the exact response body.
type Charge struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Paid     bool            `json:"paid"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
	Raw      json.RawMessage `json:"-"`
}

func (c *Charge) Succeeded() bool {
	return c.Paid && c.Status == "succeeded"
}

// GatewayError is returned when the gateway answers with a non-2xx status or
// cannot be reached. Body holds the raw response when there was one.
type GatewayError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway returned status %d", e.StatusCode)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, secretKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Charge makes a single charge attempt. It never retries.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountMinor, 10))
	form.Set("currency", req.Currency)
	form.Set("source", req.Source)
	if req.Description != "" {
		form.Set("description", req.Description)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.secretKey, "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("charge rejected", "status", resp.StatusCode)
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: body}
	}

	var charge Charge
	if err := json.Unmarshal(body, &charge); err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: body, Err: fmt.Errorf("decode charge: %w", err)}
	}
	charge.Raw = json.RawMessage(body)

	c.logger.Info("charge created", "charge_id", charge.ID, "status", charge.Status, "amount", charge.Amount)
	return &charge, nil
}
