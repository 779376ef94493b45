/**
 * @description
 * This package provides a client for the external PIX payment processor.
 * It encapsulates the logic for making authenticated HTTP requests to the
 * processor's charge-creation endpoint, handling request body construction,
 * and parsing responses.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package pixclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the PIX processor API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new PIX processor client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateChargeRequest is the payload for opening a PIX charge with the processor.
// The deposit address tells the processor where to settle the resulting DePix.
type CreateChargeRequest struct {
	AmountCents     int64  `json:"amount_in_cents"`
	Description     string `json:"description"`
	DepositAddress  string `json:"deposit_address"`
	MerchantOrderID string `json:"merchant_order_id"`
}

// CreateChargeResponse is the processor's answer: the id we reconcile on later
// plus the QR artifacts the payer needs.
type CreateChargeResponse struct {
	ID          string     `json:"id"`
	QRCopyPaste string     `json:"qr_copy_paste"`
	QRImageURL  string     `json:"qr_image_url"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// ErrorResponse represents an error from the PIX processor API.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("pix processor error: %s - %s", e.Code, e.Message)
	}
	return fmt.Sprintf("pix processor error (status %d)", e.StatusCode)
}

// CreateCharge opens a charge with the PIX processor. The returned id becomes
// the payment's provider correlation key; confirmation arrives later on the
// webhook, never in this response.
func (c *Client) CreateCharge(ctx context.Context, payload CreateChargeRequest) (*CreateChargeResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/charges", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create charge request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute charge request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read charge response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=pix_client op=create_charge status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		errResp.StatusCode = resp.StatusCode
		log.Printf("level=warn component=pix_client op=create_charge status=%d code=%q message=%q", resp.StatusCode, errResp.Code, errResp.Message)
		return nil, &errResp
	}

	var successResp CreateChargeResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}
	if successResp.ID == "" {
		return nil, fmt.Errorf("pix processor returned a charge without an id")
	}

	return &successResp, nil
}
