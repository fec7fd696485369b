package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type TransferRequest struct {
	Contract string `json:"contract"`
	To       string `json:"to"`
	Amount   int64  `json:"amount"`
	FeeLimit int64  `json:"feeLimit"`
}

// WalletClient signs and broadcasts token transfers. The raw response is
// returned so the dispatcher can interpret it.
type WalletClient interface {
	Transfer(ctx context.Context, req TransferRequest) (json.RawMessage, error)
}

// HTTPWalletClient talks to a signing service that holds the hot wallet key.
type HTTPWalletClient struct {
	Client *http.Client
	URL    string
	Token  string
}

func (c *HTTPWalletClient) Transfer(ctx context.Context, tr TransferRequest) (json.RawMessage, error) {
	body, err := json.Marshal(tr)
	if err != nil {
		return nil, fmt.Errorf("encode transfer: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return json.RawMessage(raw), nil
}
