/**
 * @description
 * This file contains the HTTP handlers for the bounty registry endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/bountypix/bounty-service/internal/app"
	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
)

// Title/description limits enforced at the edge. The registry treats them as a
// caller precondition.
const (
	minTitleLen       = 3
	maxTitleLen       = 120
	maxDescriptionLen = 2000
)

// BountyHandlers holds the application service that handlers will use.
type BountyHandlers struct {
	service *app.Service
}

// NewBountyHandlers creates a new instance of BountyHandlers.
func NewBountyHandlers(service *app.Service) *BountyHandlers {
	return &BountyHandlers{service: service}
}

// CreateBountyHandler handles bounty submissions from authenticated users.
func (h *BountyHandlers) CreateBountyHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := GetAuthUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	var req domain.CreateBountyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_bounty outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if message := validateBountyContent(req.Title, req.Description); message != "" {
		log.Printf("level=warn component=api endpoint=create_bounty outcome=reject reason=validation user_id=%s", user.ID)
		h.writeError(w, http.StatusBadRequest, message)
		return
	}

	bounty, err := h.service.CreateBounty(r.Context(), user.ID, user.DisplayName, req)
	if err != nil {
		log.Printf("level=error component=api endpoint=create_bounty outcome=failed user_id=%s err=%v", user.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to create bounty")
		return
	}

	h.writeJSON(w, http.StatusCreated, bounty)
}

// GetBountyHandler returns one bounty by id.
func (h *BountyHandlers) GetBountyHandler(w http.ResponseWriter, r *http.Request) {
	bountyID, ok := h.bountyIDParam(w, r)
	if !ok {
		return
	}

	bounty, err := h.service.GetBounty(r.Context(), bountyID)
	if err != nil {
		if errors.Is(err, store.ErrBountyNotFound) {
			h.writeError(w, http.StatusNotFound, "Bounty not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_bounty outcome=failed bounty_id=%d err=%v", bountyID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load bounty")
		return
	}

	h.writeJSON(w, http.StatusOK, bounty)
}

// ListBountiesHandler returns bounties filtered by ?status, paginated with
// ?limit and ?offset, ordered by the ranking display contract.
func (h *BountyHandlers) ListBountiesHandler(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.BountyStatusApproved
	}
	if !domain.IsValidBountyStatus(status) {
		h.writeError(w, http.StatusBadRequest, "Unknown bounty status")
		return
	}

	opts := domain.BountyListOptions{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	bounties, err := h.service.ListBounties(r.Context(), status, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_bounties outcome=failed status=%s err=%v", status, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list bounties")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"bounties": bounties,
	})
}

// StatsHandler returns the per-status funding breakdown with zero-filled rows.
func (h *BountyHandlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=bounty_stats outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load stats")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// bountyIDParam parses the {bountyID} route parameter, writing a 400 on failure.
func (h *BountyHandlers) bountyIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "bountyID")
	bountyID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || bountyID <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid bounty id")
		return 0, false
	}
	return bountyID, true
}

func validateBountyContent(title, description string) string {
	titleLen := utf8.RuneCountInString(title)
	if titleLen < minTitleLen || titleLen > maxTitleLen {
		return "Title must be between 3 and 120 characters"
	}
	if description == "" || utf8.RuneCountInString(description) > maxDescriptionLen {
		return "Description is required and must be at most 2000 characters"
	}
	return ""
}

func queryInt(r *http.Request, key string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

// writeJSON is a helper for writing JSON responses.
func (h *BountyHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *BountyHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
