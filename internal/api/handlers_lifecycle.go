/**
 * @description
 * Handlers for the bounty lifecycle transitions: moderation decisions
 * (approve/reject/remove), the developer claim flow, and the payout marks.
 * Guard misses surface as 409 Conflict with no partial state change.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
)

// ApproveBountyHandler moves a pending_review bounty into the fundable pool.
func (h *BountyHandlers) ApproveBountyHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "approve_bounty", func(bountyID int64, user AuthUser) error {
		return h.service.ApproveBounty(r.Context(), bountyID, user.ID)
	})
}

// RejectBountyHandler declines a pending_review bounty.
func (h *BountyHandlers) RejectBountyHandler(w http.ResponseWriter, r *http.Request) {
	reason := decodeReason(r)
	h.runTransition(w, r, "reject_bounty", func(bountyID int64, user AuthUser) error {
		return h.service.RejectBounty(r.Context(), bountyID, user.ID, reason)
	})
}

// RemoveBountyHandler administratively removes an approved or pending bounty.
func (h *BountyHandlers) RemoveBountyHandler(w http.ResponseWriter, r *http.Request) {
	reason := decodeReason(r)
	h.runTransition(w, r, "remove_bounty", func(bountyID int64, user AuthUser) error {
		var reasonText string
		if reason != nil {
			reasonText = *reason
		}
		return h.service.RemoveBounty(r.Context(), bountyID, user.ID, reasonText)
	})
}

// ClaimBountyHandler lets a developer claim an approved bounty.
func (h *BountyHandlers) ClaimBountyHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "claim_bounty", func(bountyID int64, user AuthUser) error {
		return h.service.ClaimBounty(r.Context(), bountyID, user.ID, user.DisplayName)
	})
}

// ApproveClaimHandler moves a taken bounty into development.
func (h *BountyHandlers) ApproveClaimHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "approve_claim", func(bountyID int64, user AuthUser) error {
		return h.service.ApproveBountyClaim(r.Context(), bountyID, user.ID)
	})
}

// RejectClaimHandler returns a taken bounty to the fundable pool.
func (h *BountyHandlers) RejectClaimHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "reject_claim", func(bountyID int64, user AuthUser) error {
		return h.service.RejectBountyClaim(r.Context(), bountyID, user.ID)
	})
}

// MarkCompletedHandler records the claiming developer finished development.
func (h *BountyHandlers) MarkCompletedHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "mark_completed", func(bountyID int64, user AuthUser) error {
		bounty, err := h.service.GetBounty(r.Context(), bountyID)
		if err != nil {
			return err
		}
		if bounty.DeveloperID == nil || *bounty.DeveloperID != user.ID {
			return store.ErrInvalidTransition
		}
		return h.service.MarkBountyCompleted(r.Context(), bountyID, user.ID)
	})
}

// MarkPaidHandler records the developer payout. Terminal.
func (h *BountyHandlers) MarkPaidHandler(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "mark_paid", func(bountyID int64, user AuthUser) error {
		return h.service.MarkBountyPaid(r.Context(), bountyID, user.ID)
	})
}

// runTransition shares the shape of every lifecycle endpoint: parse the id,
// apply the guarded transition, answer with the refreshed bounty.
func (h *BountyHandlers) runTransition(w http.ResponseWriter, r *http.Request, endpoint string, transition func(bountyID int64, user AuthUser) error) {
	user, ok := GetAuthUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}
	bountyID, ok := h.bountyIDParam(w, r)
	if !ok {
		return
	}

	if err := transition(bountyID, user); err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTransition):
			log.Printf("level=warn component=api endpoint=%s outcome=reject reason=invalid_transition bounty_id=%d user_id=%s", endpoint, bountyID, user.ID)
			h.writeError(w, http.StatusConflict, "Bounty is not in a status that allows this action")
		case errors.Is(err, store.ErrBountyNotFound):
			h.writeError(w, http.StatusNotFound, "Bounty not found")
		default:
			log.Printf("level=error component=api endpoint=%s outcome=failed bounty_id=%d err=%v", endpoint, bountyID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to apply transition")
		}
		return
	}

	bounty, err := h.service.GetBounty(r.Context(), bountyID)
	if err != nil {
		// The transition itself succeeded; answer without the refreshed record.
		h.writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
		return
	}
	h.writeJSON(w, http.StatusOK, bounty)
}

func decodeReason(r *http.Request) *string {
	var req domain.ModerationDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil
	}
	return req.Reason
}
