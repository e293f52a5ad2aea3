// Package gateway talks to a Paystack-compatible card payment gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/freelancedao/escrow-service/internal/metrics"
)

// Error is a gateway call that completed but did not succeed.
type Error struct {
	StatusCode int
	Message    string
	Timeout    bool
}

func (e *Error) Error() string {
	if e.Timeout {
		return "gateway timeout: " + e.Message
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway error (%d): %s", e.StatusCode, e.Message)
	}
	return "gateway error: " + e.Message
}

// IsTimeout reports whether err means the gateway outcome is unknown.
func IsTimeout(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Timeout
}

type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type Transaction struct {
	Status    string
	Reference string
	// Amount in major units. The gateway reports minor units.
	Amount   float64
	Currency string
	Channel  string
	PaidAt   *time.Time
	Raw      map[string]any
}

func (t Transaction) Succeeded() bool {
	return t.Status == "success"
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type transactionData struct {
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Channel   string     `json:"channel"`
	PaidAt    *time.Time `json:"paid_at"`
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (*Authorization, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	data, err := c.do(ctx, http.MethodPost, "/transaction/initialize", "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var auth Authorization
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, &Error{Message: "decode initialize response: " + err.Error()}
	}
	if auth.Reference == "" {
		auth.Reference = in.Reference
	}
	return &auth, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	path := "/transaction/verify/" + url.PathEscape(reference)
	data, err := c.do(ctx, http.MethodGet, path, "/transaction/verify", nil)
	if err != nil {
		return nil, err
	}

	var tx transactionData
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, &Error{Message: "decode verify response: " + err.Error()}
	}
	raw := map[string]any{}
	_ = json.Unmarshal(data, &raw)

	return &Transaction{
		Status:    tx.Status,
		Reference: tx.Reference,
		Amount:    float64(tx.Amount) / 100,
		Currency:  tx.Currency,
		Channel:   tx.Channel,
		PaidAt:    tx.PaidAt,
		Raw:       raw,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, endpoint string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest(endpoint, "error", time.Since(start))
		if isTimeout(err) {
			return nil, &Error{Message: err.Error(), Timeout: true}
		}
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()
	metrics.RecordGatewayRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		if isTimeout(err) {
			return nil, &Error{StatusCode: resp.StatusCode, Message: err.Error(), Timeout: true}
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
	}
	return env.Data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
