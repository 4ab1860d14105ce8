// Package sepay talks to the SePay bank aggregator: it models the
// transaction entries SePay pushes to our webhook and polls SePay's
// transaction-list API as a reconciliation safety net.
package sepay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Transaction is one observed bank transaction. It is never persisted; the
// free-text description is expected to carry the payer's transfer note, which
// is the only link back to an internal pending order.
type Transaction struct {
	ID              json.Number `json:"id,omitempty"`
	BankAccount     string      `json:"account_number,omitempty"`
	Description     string      `json:"description"`
	Amount          float64     `json:"amount"`
	ReferenceNumber string      `json:"reference_number,omitempty"`
	TransactionDate string      `json:"transaction_date,omitempty"`
}

// listEnvelope is the transaction-list API response shape. SePay returns an
// error envelope with the same HTTP status, so Data stays raw until checked.
type listEnvelope struct {
	Status   int             `json:"status"`
	Error    string          `json:"error,omitempty"`
	Messages json.RawMessage `json:"messages,omitempty"`
	Data     json.RawMessage `json:"data"`
}

type listData struct {
	Records []Transaction `json:"records"`
}

// Client queries the SePay user API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a SePay API client with a bounded request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ListTransactions fetches transactions newer than since, newest first, up to
// limit records.
func (c *Client) ListTransactions(ctx context.Context, since time.Time, limit int) ([]Transaction, error) {
	q := url.Values{}
	q.Set("transaction_date_min", since.Format("2006-01-02 15:04:05"))
	q.Set("limit", strconv.Itoa(limit))

	endpoint := c.baseURL + "/transactions/list?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list transactions: unexpected status %d", resp.StatusCode)
	}

	var envelope listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("provider error: %s", envelope.Error)
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("response has no data field")
	}

	var data listData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("unexpected data shape: %w", err)
	}
	return data.Records, nil
}
