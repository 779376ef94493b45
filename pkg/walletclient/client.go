/**
 * @description
 * This package provides a client for the wallet-derivation service. Given an
 * address index, the service derives the Liquid deposit address at that index
 * of the platform wallet. Derivation is deterministic: the same index always
 * yields the same address.
 */
package walletclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the wallet-derivation service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new wallet-derivation client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// DeriveAddressResponse is the derivation result for one index.
type DeriveAddressResponse struct {
	Address string `json:"address"`
	Index   int64  `json:"index"`
}

// DeriveAddress asks the wallet service for the deposit address at the given index.
func (c *Client) DeriveAddress(ctx context.Context, index int64) (*DeriveAddressResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("wallet service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/addresses/%d", c.baseURL, index)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to wallet service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("wallet service returned error status %d", resp.StatusCode)
	}

	var response DeriveAddressResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Address == "" {
		return nil, fmt.Errorf("wallet service returned an empty address for index %d", index)
	}

	return &response, nil
}
