/**
 * @description
 * Claim workflow: a developer claims an approved bounty, a moderator approves
 * or rejects the claim, the developer finishes, and a moderator marks the
 * bounty paid. Each step is a guarded update at the store; the status guard is
 * what prevents double-claiming under concurrency — two racing claims hit the
 * same row and exactly one matches.
 */

package app

import (
	"context"
	"fmt"
	"log"
)

// ClaimBounty assigns a developer to an approved bounty and alerts the admins
// that a claim is waiting on their decision.
func (s *Service) ClaimBounty(ctx context.Context, bountyID int64, developerID, developerDisplayName string) error {
	if err := s.repo.ClaimBounty(ctx, bountyID, developerID, developerDisplayName); err != nil {
		return err
	}

	log.Printf("level=info component=claims msg=\"bounty claimed\" bounty_id=%d developer_id=%s", bountyID, developerID)
	s.notifyAdmins(ctx, fmt.Sprintf("Bounty #%d was claimed by %s and is waiting for claim review.", bountyID, developerDisplayName))
	return nil
}

// ApproveBountyClaim moves a taken bounty into development and tells the
// developer to start.
func (s *Service) ApproveBountyClaim(ctx context.Context, bountyID int64, moderatorID string) error {
	if err := s.repo.ApproveBountyClaim(ctx, bountyID); err != nil {
		return err
	}

	log.Printf("level=info component=claims msg=\"claim approved\" bounty_id=%d moderator_id=%s", bountyID, moderatorID)

	if bounty, err := s.repo.FindBountyByID(ctx, bountyID); err == nil && bounty.DeveloperID != nil {
		s.notifyUser(ctx, *bounty.DeveloperID, fmt.Sprintf("Your claim on bounty #%d %q was approved. Development is on.", bounty.ID, bounty.Title))
	}
	return nil
}

// RejectBountyClaim returns a taken bounty to the fundable pool, fully
// clearing the developer assignment, and tells the developer.
func (s *Service) RejectBountyClaim(ctx context.Context, bountyID int64, moderatorID string) error {
	// Capture the developer before the guard clears the assignment.
	var developerID string
	if bounty, err := s.repo.FindBountyByID(ctx, bountyID); err == nil && bounty.DeveloperID != nil {
		developerID = *bounty.DeveloperID
	}

	if err := s.repo.RejectBountyClaim(ctx, bountyID); err != nil {
		return err
	}

	log.Printf("level=info component=claims msg=\"claim rejected\" bounty_id=%d moderator_id=%s", bountyID, moderatorID)

	if developerID != "" {
		s.notifyUser(ctx, developerID, fmt.Sprintf("Your claim on bounty #%d was rejected; the bounty is open again.", bountyID))
	}
	return nil
}

// MarkBountyCompleted records that development finished and alerts the admins
// that a payout is due.
func (s *Service) MarkBountyCompleted(ctx context.Context, bountyID int64, developerID string) error {
	if err := s.repo.MarkBountyCompleted(ctx, bountyID); err != nil {
		return err
	}

	log.Printf("level=info component=claims msg=\"bounty completed\" bounty_id=%d developer_id=%s", bountyID, developerID)
	s.notifyAdmins(ctx, fmt.Sprintf("Bounty #%d was marked completed and is ready for payout.", bountyID))
	return nil
}

// MarkBountyPaid is the terminal transition of the claim lifecycle: the
// developer has been paid.
func (s *Service) MarkBountyPaid(ctx context.Context, bountyID int64, moderatorID string) error {
	if err := s.repo.MarkBountyPaid(ctx, bountyID); err != nil {
		return err
	}

	log.Printf("level=info component=claims msg=\"bounty paid\" bounty_id=%d moderator_id=%s", bountyID, moderatorID)

	if bounty, err := s.repo.FindBountyByID(ctx, bountyID); err == nil && bounty.DeveloperID != nil {
		s.notifyUser(ctx, *bounty.DeveloperID, fmt.Sprintf("Bounty #%d %q was paid out. Thanks for building it.", bounty.ID, bounty.Title))
	}
	return nil
}
