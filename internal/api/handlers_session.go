/**
 * @description
 * Handlers for the moderation-session store: the gateway saves in-flight
 * multi-step moderator state here (keyed by moderator id, TTL'd) so a
 * conversation survives gateway restarts. Disabled when redis is not
 * configured.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
)

// GetModerationSessionHandler fetches the caller's saved session.
func (h *BountyHandlers) GetModerationSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := GetAuthUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	session, err := h.service.Sessions().GetModerationSession(r.Context(), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrModerationSessionNotFound):
			h.writeError(w, http.StatusNotFound, "No active moderation session")
		case errors.Is(err, store.ErrModerationSessionsDisabled):
			h.writeError(w, http.StatusServiceUnavailable, "Moderation sessions are not configured")
		default:
			log.Printf("level=error component=api endpoint=get_session outcome=failed moderator_id=%s err=%v", user.ID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to load session")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, session)
}

// SaveModerationSessionHandler stores the caller's session, resetting its TTL.
func (h *BountyHandlers) SaveModerationSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := GetAuthUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	var session domain.ModerationSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// The token owns the identity; the body cannot speak for another moderator.
	session.ModeratorID = user.ID
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}

	if err := h.service.Sessions().SaveModerationSession(r.Context(), session); err != nil {
		if errors.Is(err, store.ErrModerationSessionsDisabled) {
			h.writeError(w, http.StatusServiceUnavailable, "Moderation sessions are not configured")
			return
		}
		log.Printf("level=error component=api endpoint=save_session outcome=failed moderator_id=%s err=%v", user.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to save session")
		return
	}

	h.writeJSON(w, http.StatusOK, session)
}

// ClearModerationSessionHandler removes the caller's session.
func (h *BountyHandlers) ClearModerationSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := GetAuthUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	if err := h.service.Sessions().ClearModerationSession(r.Context(), user.ID); err != nil {
		if errors.Is(err, store.ErrModerationSessionsDisabled) {
			h.writeError(w, http.StatusServiceUnavailable, "Moderation sessions are not configured")
			return
		}
		log.Printf("level=error component=api endpoint=clear_session outcome=failed moderator_id=%s err=%v", user.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to clear session")
		return
	}

	h.writeJSON(w, http.StatusNoContent, nil)
}
