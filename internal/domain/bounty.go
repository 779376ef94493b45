/**
 * @description
 * This file defines the core domain models for the bounty-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - User identities (creators, payers, developers, moderators) are opaque external
 *   ids minted by the gateway in front of this service, carried as strings.
 * - Monetary totals are stored as `int64` in centavos, which avoids floating-point
 *   inaccuracies with financial data.
 */

package domain

import "time"

// Bounty lifecycle statuses.
const (
	BountyStatusPendingReview = "pending_review"
	BountyStatusApproved      = "approved"
	BountyStatusRejected      = "rejected"
	BountyStatusTaken         = "taken"
	BountyStatusInDevelopment = "in_development"
	BountyStatusCompleted     = "completed"
	BountyStatusPaid          = "paid"
)

// AllBountyStatuses lists every lifecycle status, in display order.
// Stats reporting iterates this so statuses with no rows still show up as zeros.
var AllBountyStatuses = []string{
	BountyStatusPendingReview,
	BountyStatusApproved,
	BountyStatusTaken,
	BountyStatusInDevelopment,
	BountyStatusCompleted,
	BountyStatusPaid,
	BountyStatusRejected,
}

// FundableBountyStatuses are the statuses over which rankings are computed and
// against which new contributions may be opened.
var FundableBountyStatuses = []string{
	BountyStatusApproved,
}

// Bounty represents a community-proposed feature request open for funding.
// This struct maps directly to the `bounty_features` table in the database.
type Bounty struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	CreatorID          string     `json:"creator_id"`
	CreatorDisplayName string     `json:"creator_display_name"`
	Status             string     `json:"status"` // e.g., 'pending_review', 'approved', 'taken'
	TotalConfirmed     int64      `json:"total_confirmed_cents"`       // sum of confirmed contributions, in centavos
	ContributionCount  int        `json:"confirmed_contribution_count"`
	Ranking            *int       `json:"ranking,omitempty"` // ordinal among fundable bounties, lower = higher priority
	DeveloperID        *string    `json:"developer_id,omitempty"`
	DeveloperName      *string    `json:"developer_display_name,omitempty"`
	ClaimedAt          *time.Time `json:"claimed_at,omitempty"`
	ClaimApprovedAt    *time.Time `json:"claim_approved_at,omitempty"`
	ReviewedBy         *string    `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes        *string    `json:"review_notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CreateBountyRequest is the DTO for submitting a new bounty.
// Creator identity comes from the authenticated gateway token, not the body.
type CreateBountyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ModerationDecisionRequest carries the optional reason attached to a
// reject or remove decision.
type ModerationDecisionRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// BountyListOptions controls pagination for status-filtered bounty listings.
type BountyListOptions struct {
	Limit  int
	Offset int
}

// BountyStatusStats aggregates funding figures for one lifecycle status.
type BountyStatusStats struct {
	Status            string `json:"status"`
	Count             int64  `json:"count"`
	TotalConfirmed    int64  `json:"total_confirmed_cents"`
	ContributionCount int64  `json:"confirmed_contribution_count"`
}

// BountyStats is the per-status breakdown plus grand totals.
type BountyStats struct {
	Statuses          []BountyStatusStats `json:"statuses"`
	TotalBounties     int64               `json:"total_bounties"`
	TotalConfirmed    int64               `json:"total_confirmed_cents"`
	ContributionCount int64               `json:"confirmed_contribution_count"`
}

// ModerationSession captures in-flight multi-step moderator state (e.g. a
// reject decision waiting on its reason) so the gateway can resume it.
// Stored in redis with a TTL, keyed by moderator id.
type ModerationSession struct {
	ModeratorID string    `json:"moderator_id"`
	Action      string    `json:"action"`
	BountyID    int64     `json:"bounty_id"`
	Stage       string    `json:"stage"`
	StartedAt   time.Time `json:"started_at"`
}

// IsValidBountyStatus reports whether s is a known lifecycle status.
func IsValidBountyStatus(s string) bool {
	for _, known := range AllBountyStatuses {
		if s == known {
			return true
		}
	}
	return false
}
