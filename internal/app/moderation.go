/**
 * @description
 * Moderation workflow over the bounty lifecycle: approve, reject and
 * administrative removal. Every transition is a guarded update at the store;
 * a guard miss (unknown id or wrong prior status) surfaces as
 * store.ErrInvalidTransition with no partial write.
 *
 * Approvals and removals change the fundable pool, so both trigger a full
 * ranking recalculation afterwards. Rankings are a derived ordering and the
 * recomputation is idempotent, so a failure here never rolls back the
 * transition itself.
 */

package app

import (
	"context"
	"fmt"
	"log"
)

const defaultRemovalReason = "removed by moderator"

// ApproveBounty moves a bounty from pending_review into the fundable pool and
// tells the creator.
func (s *Service) ApproveBounty(ctx context.Context, bountyID int64, moderatorID string) error {
	if err := s.repo.ApproveBounty(ctx, bountyID, moderatorID); err != nil {
		return err
	}

	log.Printf("level=info component=moderation msg=\"bounty approved\" bounty_id=%d moderator_id=%s", bountyID, moderatorID)
	s.recomputeRankings(ctx)

	if bounty, err := s.repo.FindBountyByID(ctx, bountyID); err == nil {
		s.notifyUser(ctx, bounty.CreatorID, fmt.Sprintf("Your bounty #%d %q was approved and is now open for funding.", bounty.ID, bounty.Title))
	}
	return nil
}

// RejectBounty declines a pending_review bounty, recording the optional reason
// and telling the creator.
func (s *Service) RejectBounty(ctx context.Context, bountyID int64, moderatorID string, reason *string) error {
	if err := s.repo.RejectBounty(ctx, bountyID, moderatorID, reason); err != nil {
		return err
	}

	log.Printf("level=info component=moderation msg=\"bounty rejected\" bounty_id=%d moderator_id=%s", bountyID, moderatorID)

	if bounty, err := s.repo.FindBountyByID(ctx, bountyID); err == nil {
		message := fmt.Sprintf("Your bounty #%d %q was rejected.", bounty.ID, bounty.Title)
		if reason != nil && *reason != "" {
			message = fmt.Sprintf("%s Reason: %s", message, *reason)
		}
		s.notifyUser(ctx, bounty.CreatorID, message)
	}
	return nil
}

// RemoveBounty is the administrative removal: approved or pending_review
// bounties become rejected. A bounty with an active or paid developer claim
// never matches the guard and cannot be removed this way.
func (s *Service) RemoveBounty(ctx context.Context, bountyID int64, moderatorID string, reason string) error {
	if reason == "" {
		reason = defaultRemovalReason
	}

	if err := s.repo.RemoveBounty(ctx, bountyID, moderatorID, reason); err != nil {
		return err
	}

	log.Printf("level=info component=moderation msg=\"bounty removed\" bounty_id=%d moderator_id=%s reason=%q", bountyID, moderatorID, reason)
	s.recomputeRankings(ctx)

	if bounty, err := s.repo.FindBountyByID(ctx, bountyID); err == nil {
		s.notifyUser(ctx, bounty.CreatorID, fmt.Sprintf("Your bounty #%d %q was removed. Reason: %s", bounty.ID, bounty.Title, reason))
	}
	return nil
}

// recomputeRankings rebuilds the fundable-pool ordering. The write is a derived
// recomputation, safe to retry on the next trigger, so failures are logged
// rather than surfaced.
func (s *Service) recomputeRankings(ctx context.Context) {
	if err := s.repo.RecomputeBountyRankings(ctx); err != nil {
		log.Printf("level=warn component=moderation msg=\"ranking recomputation failed\" err=%v", err)
	}
}
