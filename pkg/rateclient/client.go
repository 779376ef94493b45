/**
 * @description
 * This package provides a client for the price-conversion service, which turns
 * a native on-chain asset amount into its fiat equivalent in centavos at the
 * current market rate.
 */
package rateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the price-conversion service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new price-conversion client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ConvertRequest asks for the fiat value of a native asset amount.
type ConvertRequest struct {
	AssetKind    string `json:"asset_kind"`
	NativeAmount int64  `json:"native_amount"`
}

// ConvertResponse carries the converted value in centavos.
type ConvertResponse struct {
	AssetKind       string `json:"asset_kind"`
	NativeAmount    int64  `json:"native_amount"`
	FiatAmountCents int64  `json:"fiat_amount_cents"`
}

// ConvertToFiat converts nativeAmount of assetKind into centavos.
func (c *Client) ConvertToFiat(ctx context.Context, assetKind string, nativeAmount int64) (int64, error) {
	if c.baseURL == "" {
		return 0, fmt.Errorf("rate service base url is empty")
	}

	payload := ConvertRequest{
		AssetKind:    assetKind,
		NativeAmount: nativeAmount,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/internal/convert", bytes.NewBuffer(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request to rate service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("rate service returned error status %d", resp.StatusCode)
	}

	var response ConvertResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if response.FiatAmountCents < 0 {
		return 0, fmt.Errorf("rate service returned a negative fiat amount")
	}

	return response.FiatAmountCents, nil
}
