// Package sms sends text messages through a Twilio-compatible HTTP API.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MaxBodyLength is the longest message body accepted by Send.
const MaxBodyLength = 1600

type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

func NewClient(baseURL, accountSID, authToken, from string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Send delivers body to the phone number to and returns the message sid.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	body = strings.TrimSpace(body)
	if to == "" || body == "" {
		return "", fmt.Errorf("sms: missing recipient or body")
	}
	if len(body) > MaxBodyLength {
		return "", fmt.Errorf("sms: body longer than %d bytes", MaxBodyLength)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("sms gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode sms response: %w", err)
	}
	return out.SID, nil
}
