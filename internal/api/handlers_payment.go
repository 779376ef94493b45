/**
 * @description
 * Handlers for opening contributions toward a bounty on either payment rail.
 * The PIX rail answers with the processor's QR artifacts; the asset rail
 * answers with a freshly allocated deposit address.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bountypix/bounty-service/internal/app"
	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
)

// CreatePixPaymentHandler opens a PIX contribution.
func (h *BountyHandlers) CreatePixPaymentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := GetAuthUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}
	bountyID, ok := h.bountyIDParam(w, r)
	if !ok {
		return
	}

	var req domain.CreatePixPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_pix_payment outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AmountCents <= 0 {
		h.writeError(w, http.StatusBadRequest, "amount_cents must be positive")
		return
	}

	resp, err := h.service.CreatePixPayment(r.Context(), bountyID, user.ID, user.DisplayName, req.AmountCents)
	if err != nil {
		h.writePaymentCreationError(w, "create_pix_payment", bountyID, err)
		return
	}

	log.Printf("level=info component=api endpoint=create_pix_payment outcome=accepted bounty_id=%d payer_id=%s amount_cents=%d", bountyID, user.ID, req.AmountCents)
	h.writeJSON(w, http.StatusCreated, resp)
}

// CreateAssetPaymentHandler opens an on-chain contribution.
func (h *BountyHandlers) CreateAssetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := GetAuthUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}
	bountyID, ok := h.bountyIDParam(w, r)
	if !ok {
		return
	}

	var req domain.CreateAssetPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_asset_payment outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.CreateAssetPayment(r.Context(), bountyID, user.ID, user.DisplayName, req.AssetKind)
	if err != nil {
		h.writePaymentCreationError(w, "create_asset_payment", bountyID, err)
		return
	}

	log.Printf("level=info component=api endpoint=create_asset_payment outcome=accepted bounty_id=%d payer_id=%s asset_kind=%s", bountyID, user.ID, req.AssetKind)
	h.writeJSON(w, http.StatusCreated, resp)
}

// writePaymentCreationError maps gateway errors onto the API surface.
func (h *BountyHandlers) writePaymentCreationError(w http.ResponseWriter, endpoint string, bountyID int64, err error) {
	log.Printf("level=warn component=api endpoint=%s outcome=failed bounty_id=%d err=%v", endpoint, bountyID, err)

	switch {
	case errors.Is(err, store.ErrBountyNotFound):
		h.writeError(w, http.StatusNotFound, "Bounty not found")
	case errors.Is(err, app.ErrNotFundable):
		h.writeError(w, http.StatusConflict, "Bounty is not open for funding")
	case errors.Is(err, app.ErrInvalidAsset):
		h.writeError(w, http.StatusBadRequest, "Unsupported asset kind")
	case errors.Is(err, app.ErrAllocation):
		h.writeError(w, http.StatusBadGateway, "Deposit address allocation failed, try again")
	default:
		h.writeError(w, http.StatusBadGateway, "Payment creation failed")
	}
}
