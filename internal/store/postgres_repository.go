/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for the bounty registry: creation, lookups, status-filtered listings, per-status
 * stats, the guarded moderation/claim transitions, and the derived-data
 * recomputations (funding aggregates and rankings).
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * - Every lifecycle transition is a single UPDATE whose WHERE clause names the
 *   expected prior status. Two concurrent attempts race at the row level and
 *   exactly one wins; the loser sees zero rows affected and gets
 *   ErrInvalidTransition with no partial write.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bountypix/bounty-service/internal/domain"
)

var (
	ErrBountyNotFound      = errors.New("bounty not found")
	ErrInvalidTransition   = errors.New("invalid bounty status transition")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentAlreadyFinal = errors.New("payment already in a terminal status")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateBounty inserts a new bounty row and returns it with its generated id
// and timestamps filled in.
func (r *PostgresRepository) CreateBounty(ctx context.Context, bounty *domain.Bounty) (*domain.Bounty, error) {
	query := `
		INSERT INTO bounty_features (
			title,
			description,
			creator_id,
			creator_display_name,
			status
		)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		bounty.Title,
		bounty.Description,
		bounty.CreatorID,
		bounty.CreatorDisplayName,
		bounty.Status,
	).Scan(&bounty.ID, &bounty.CreatedAt, &bounty.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bounty: %w", err)
	}
	return bounty, nil
}

// FindBountyByID retrieves a bounty by its numeric id.
func (r *PostgresRepository) FindBountyByID(ctx context.Context, bountyID int64) (*domain.Bounty, error) {
	var bounty domain.Bounty
	query := `
		SELECT id, title, description, creator_id, creator_display_name, status,
		       total_confirmed_cents, confirmed_contribution_count, ranking,
		       developer_id, developer_display_name, claimed_at, claim_approved_at,
		       reviewed_by, reviewed_at, review_notes, created_at, updated_at
		FROM bounty_features
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, bountyID).Scan(
		&bounty.ID,
		&bounty.Title,
		&bounty.Description,
		&bounty.CreatorID,
		&bounty.CreatorDisplayName,
		&bounty.Status,
		&bounty.TotalConfirmed,
		&bounty.ContributionCount,
		&bounty.Ranking,
		&bounty.DeveloperID,
		&bounty.DeveloperName,
		&bounty.ClaimedAt,
		&bounty.ClaimApprovedAt,
		&bounty.ReviewedBy,
		&bounty.ReviewedAt,
		&bounty.ReviewNotes,
		&bounty.CreatedAt,
		&bounty.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBountyNotFound
		}
		return nil, err
	}
	return &bounty, nil
}

// ListBountiesByStatus returns bounties in one status, ordered by the ranking
// display contract: ranking ascending (unranked last), confirmed total
// descending, then creation time ascending as the final tie-break.
func (r *PostgresRepository) ListBountiesByStatus(ctx context.Context, status string, opts domain.BountyListOptions) ([]domain.Bounty, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, title, description, creator_id, creator_display_name, status,
		       total_confirmed_cents, confirmed_contribution_count, ranking,
		       developer_id, developer_display_name, claimed_at, claim_approved_at,
		       reviewed_by, reviewed_at, review_notes, created_at, updated_at
		FROM bounty_features
		WHERE status = $1
		ORDER BY ranking ASC NULLS LAST, total_confirmed_cents DESC, created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bounties := make([]domain.Bounty, 0)
	for rows.Next() {
		var bounty domain.Bounty
		if err := rows.Scan(
			&bounty.ID,
			&bounty.Title,
			&bounty.Description,
			&bounty.CreatorID,
			&bounty.CreatorDisplayName,
			&bounty.Status,
			&bounty.TotalConfirmed,
			&bounty.ContributionCount,
			&bounty.Ranking,
			&bounty.DeveloperID,
			&bounty.DeveloperName,
			&bounty.ClaimedAt,
			&bounty.ClaimApprovedAt,
			&bounty.ReviewedBy,
			&bounty.ReviewedAt,
			&bounty.ReviewNotes,
			&bounty.CreatedAt,
			&bounty.UpdatedAt,
		); err != nil {
			return nil, err
		}
		bounties = append(bounties, bounty)
	}
	return bounties, rows.Err()
}

// GetBountyStats aggregates counts and confirmed funding per status. Statuses
// with no rows are absent from the map; callers zero-fill from the known list.
func (r *PostgresRepository) GetBountyStats(ctx context.Context) (map[string]domain.BountyStatusStats, error) {
	query := `
		SELECT status,
		       COUNT(*),
		       COALESCE(SUM(total_confirmed_cents), 0),
		       COALESCE(SUM(confirmed_contribution_count), 0)
		FROM bounty_features
		GROUP BY status
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]domain.BountyStatusStats)
	for rows.Next() {
		var row domain.BountyStatusStats
		if err := rows.Scan(&row.Status, &row.Count, &row.TotalConfirmed, &row.ContributionCount); err != nil {
			return nil, err
		}
		stats[row.Status] = row
	}
	return stats, rows.Err()
}

// ApproveBounty moves a bounty from pending_review to approved and stamps the
// moderation audit fields.
func (r *PostgresRepository) ApproveBounty(ctx context.Context, bountyID int64, moderatorID string) error {
	query := `
		UPDATE bounty_features
		SET status = 'approved', reviewed_by = $2, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending_review'
	`
	result, err := r.db.Exec(ctx, query, bountyID, moderatorID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// RejectBounty moves a bounty from pending_review to rejected, recording the
// optional reason in the review notes.
func (r *PostgresRepository) RejectBounty(ctx context.Context, bountyID int64, moderatorID string, reason *string) error {
	query := `
		UPDATE bounty_features
		SET status = 'rejected', reviewed_by = $2, reviewed_at = NOW(), review_notes = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_review'
	`
	result, err := r.db.Exec(ctx, query, bountyID, moderatorID, reason)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// RemoveBounty performs the administrative removal: approved or pending_review
// bounties become rejected. Bounties with an active or paid developer claim
// never match the guard and cannot be removed this way.
func (r *PostgresRepository) RemoveBounty(ctx context.Context, bountyID int64, moderatorID string, reason string) error {
	query := `
		UPDATE bounty_features
		SET status = 'rejected', reviewed_by = $2, reviewed_at = NOW(), review_notes = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('approved', 'pending_review')
	`
	result, err := r.db.Exec(ctx, query, bountyID, moderatorID, reason)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ClaimBounty assigns a developer to an approved bounty. The status guard is
// what prevents double-claiming under concurrency.
func (r *PostgresRepository) ClaimBounty(ctx context.Context, bountyID int64, developerID, developerDisplayName string) error {
	query := `
		UPDATE bounty_features
		SET status = 'taken', developer_id = $2, developer_display_name = $3, claimed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'approved'
	`
	result, err := r.db.Exec(ctx, query, bountyID, developerID, developerDisplayName)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ApproveBountyClaim moves a taken bounty into development.
func (r *PostgresRepository) ApproveBountyClaim(ctx context.Context, bountyID int64) error {
	query := `
		UPDATE bounty_features
		SET status = 'in_development', claim_approved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'taken'
	`
	result, err := r.db.Exec(ctx, query, bountyID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// RejectBountyClaim returns a taken bounty to the fundable pool, fully
// clearing the developer assignment.
func (r *PostgresRepository) RejectBountyClaim(ctx context.Context, bountyID int64) error {
	query := `
		UPDATE bounty_features
		SET status = 'approved', developer_id = NULL, developer_display_name = NULL,
		    claimed_at = NULL, claim_approved_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'taken'
	`
	result, err := r.db.Exec(ctx, query, bountyID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkBountyCompleted records that development finished.
func (r *PostgresRepository) MarkBountyCompleted(ctx context.Context, bountyID int64) error {
	query := `
		UPDATE bounty_features
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'in_development'
	`
	result, err := r.db.Exec(ctx, query, bountyID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkBountyPaid is the terminal transition of the claim lifecycle.
func (r *PostgresRepository) MarkBountyPaid(ctx context.Context, bountyID int64) error {
	query := `
		UPDATE bounty_features
		SET status = 'paid', updated_at = NOW()
		WHERE id = $1 AND status = 'completed'
	`
	result, err := r.db.Exec(ctx, query, bountyID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// RefreshBountyAggregates recomputes one bounty's funding totals as the sum
// over its confirmed payments. Re-running it after a retried confirmation is
// harmless, which is why confirmations never increment totals in place.
func (r *PostgresRepository) RefreshBountyAggregates(ctx context.Context, bountyID int64) error {
	query := `
		WITH agg AS (
			SELECT
				COALESCE(SUM(fiat_amount_cents), 0) AS total,
				COUNT(*) AS contribution_count
			FROM bounty_payments
			WHERE bounty_id = $1 AND status = 'confirmed'
		)
		UPDATE bounty_features b
		SET
			total_confirmed_cents = agg.total,
			confirmed_contribution_count = agg.contribution_count,
			updated_at = NOW()
		FROM agg
		WHERE b.id = $1
	`
	result, err := r.db.Exec(ctx, query, bountyID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBountyNotFound
	}
	return nil
}

// RefreshAllBountyAggregates recomputes funding totals for every bounty whose
// stored aggregates drifted from the sum of its confirmed payments. Returns
// the number of rows corrected.
func (r *PostgresRepository) RefreshAllBountyAggregates(ctx context.Context) (int64, error) {
	query := `
		UPDATE bounty_features b
		SET
			total_confirmed_cents = agg.total,
			confirmed_contribution_count = agg.contribution_count,
			updated_at = NOW()
		FROM (
			SELECT bounty_id,
			       COALESCE(SUM(fiat_amount_cents), 0) AS total,
			       COUNT(*) AS contribution_count
			FROM bounty_payments
			WHERE status = 'confirmed'
			GROUP BY bounty_id
		) agg
		WHERE b.id = agg.bounty_id
		  AND (b.total_confirmed_cents <> agg.total
		       OR b.confirmed_contribution_count <> agg.contribution_count)
	`
	result, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// RecomputeBountyRankings rebuilds the ordinal priority over fundable bounties
// (confirmed total descending, creation time ascending) and clears rankings on
// everything else. Runs in one transaction so readers never observe a half
// applied ordering.
func (r *PostgresRepository) RecomputeBountyRankings(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rankQuery := `
		WITH ranked AS (
			SELECT id,
			       ROW_NUMBER() OVER (ORDER BY total_confirmed_cents DESC, created_at ASC) AS position
			FROM bounty_features
			WHERE status = ANY($1)
		)
		UPDATE bounty_features b
		SET ranking = ranked.position, updated_at = NOW()
		FROM ranked
		WHERE b.id = ranked.id AND b.ranking IS DISTINCT FROM ranked.position
	`
	if _, err := tx.Exec(ctx, rankQuery, domain.FundableBountyStatuses); err != nil {
		return fmt.Errorf("failed to recompute rankings: %w", err)
	}

	clearQuery := `
		UPDATE bounty_features
		SET ranking = NULL, updated_at = NOW()
		WHERE status <> ALL($1) AND ranking IS NOT NULL
	`
	if _, err := tx.Exec(ctx, clearQuery, domain.FundableBountyStatuses); err != nil {
		return fmt.Errorf("failed to clear stale rankings: %w", err)
	}

	return tx.Commit(ctx)
}
