/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from the
 * PIX processor. It acts as the fiat rail's entry point into the payment
 * reconciler.
 *
 * Key features:
 * - Security: Validates the HMAC signature of incoming webhooks to ensure authenticity.
 * - Parsing: Decodes the JSON payload into strongly-typed Go structs.
 * - Response contract: 401 for a bad signature, 400 for malformed JSON, 200 for
 *   every processed outcome including not-found and idempotent no-ops (so the
 *   processor stops redelivering), 500 only on transient internal failure (so
 *   it redelivers and idempotency absorbs the retry).
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/hex: For webhook signature validation.
 * - encoding/json, io, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Reconciler entry point and errors.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/bountypix/bounty-service/internal/app"
	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
)

// PixWebhookHandler processes incoming webhooks from the PIX processor.
type PixWebhookHandler struct {
	service *app.Service
	secret  string
}

// NewPixWebhookHandler creates a new handler for the PIX webhook endpoint.
func NewPixWebhookHandler(service *app.Service, secret string) *PixWebhookHandler {
	return &PixWebhookHandler{service: service, secret: secret}
}

// ServeHTTP implements the http.Handler interface.
func (h *PixWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("level=warn component=pix_webhook msg=\"failed to read body\" err=%v", err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	if !h.isValidSignature(r.Header.Get("X-Pix-Signature"), body) {
		log.Printf("level=warn component=pix_webhook msg=\"invalid signature\" remote=%s", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event domain.PixWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=pix_webhook msg=\"malformed payload\" err=%v", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if event.ID == "" && event.MerchantOrderID == "" {
		log.Printf("level=warn component=pix_webhook msg=\"payload carries no correlation key\"")
		http.Error(w, "Missing payment identifier", http.StatusBadRequest)
		return
	}

	if err := h.service.ProcessFiatNotification(r.Context(), event); err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			// Not ours. Acknowledge so the processor stops redelivering.
			log.Printf("level=info component=pix_webhook msg=\"unknown payment; acknowledged\" provider_payment_id=%s merchant_order_id=%s", event.ID, event.MerchantOrderID)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Unknown payment ignored"))
			return
		}
		log.Printf("level=error component=pix_webhook msg=\"processing failed; requesting redelivery\" provider_payment_id=%s err=%v", event.ID, err)
		http.Error(w, "Internal server error during event processing", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

// isValidSignature checks the HMAC-SHA256 signature over the raw body. The
// header carries hex, optionally prefixed with "sha256=".
func (h *PixWebhookHandler) isValidSignature(signatureHeader string, body []byte) bool {
	if h.secret == "" {
		log.Println("level=warn component=pix_webhook msg=\"PIX_WEBHOOK_SECRET is not set; skipping signature validation\"")
		return true
	}

	header := strings.TrimSpace(signatureHeader)
	if header == "" {
		return false
	}
	header = strings.TrimPrefix(strings.ToLower(header), "sha256=")

	provided, err := hex.DecodeString(header)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
