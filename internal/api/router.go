/**
 * @description
 * This file sets up the HTTP router for the bounty-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BountyRoutes creates and returns the router for the bounty service.
func BountyRoutes(h *BountyHandlers, webhook *PixWebhookHandler, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// The processor authenticates with an HMAC signature, not a gateway token.
	r.Post("/webhooks/pix", webhook.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		// Public read surface.
		r.Get("/bounties", h.ListBountiesHandler)
		r.Get("/bounties/stats", h.StatsHandler)
		r.Get("/bounties/{bountyID}", h.GetBountyHandler)

		// Authenticated user surface.
		r.Group(func(r chi.Router) {
			r.Use(GatewayAuthMiddleware(jwtSecret))

			r.Post("/bounties", h.CreateBountyHandler)
			r.Post("/bounties/{bountyID}/payments/pix", h.CreatePixPaymentHandler)
			r.Post("/bounties/{bountyID}/payments/asset", h.CreateAssetPaymentHandler)
			r.Post("/bounties/{bountyID}/claim", h.ClaimBountyHandler)
			r.Post("/bounties/{bountyID}/complete", h.MarkCompletedHandler)
		})

		// Moderator surface.
		r.Group(func(r chi.Router) {
			r.Use(GatewayAuthMiddleware(jwtSecret))
			r.Use(RequireModerator)

			r.Post("/moderation/bounties/{bountyID}/approve", h.ApproveBountyHandler)
			r.Post("/moderation/bounties/{bountyID}/reject", h.RejectBountyHandler)
			r.Post("/moderation/bounties/{bountyID}/remove", h.RemoveBountyHandler)
			r.Post("/moderation/bounties/{bountyID}/claim/approve", h.ApproveClaimHandler)
			r.Post("/moderation/bounties/{bountyID}/claim/reject", h.RejectClaimHandler)
			r.Post("/moderation/bounties/{bountyID}/paid", h.MarkPaidHandler)

			r.Get("/moderation/session", h.GetModerationSessionHandler)
			r.Put("/moderation/session", h.SaveModerationSessionHandler)
			r.Delete("/moderation/session", h.ClearModerationSessionHandler)
		})
	})

	return r
}
