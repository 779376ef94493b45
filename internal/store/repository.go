/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the bounty-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For merchant-order id handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/bountypix/bounty-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Bounty registry methods
	CreateBounty(ctx context.Context, bounty *domain.Bounty) (*domain.Bounty, error)
	FindBountyByID(ctx context.Context, bountyID int64) (*domain.Bounty, error)
	ListBountiesByStatus(ctx context.Context, status string, opts domain.BountyListOptions) ([]domain.Bounty, error)
	GetBountyStats(ctx context.Context) (map[string]domain.BountyStatusStats, error)

	// Moderation transitions. Each is a guarded update: it succeeds only when
	// the bounty is currently in the expected prior status, otherwise it
	// returns ErrInvalidTransition with no partial write.
	ApproveBounty(ctx context.Context, bountyID int64, moderatorID string) error
	RejectBounty(ctx context.Context, bountyID int64, moderatorID string, reason *string) error
	RemoveBounty(ctx context.Context, bountyID int64, moderatorID string, reason string) error

	// Claim transitions, guarded the same way.
	ClaimBounty(ctx context.Context, bountyID int64, developerID, developerDisplayName string) error
	ApproveBountyClaim(ctx context.Context, bountyID int64) error
	RejectBountyClaim(ctx context.Context, bountyID int64) error
	MarkBountyCompleted(ctx context.Context, bountyID int64) error
	MarkBountyPaid(ctx context.Context, bountyID int64) error

	// Derived data. All three are idempotent recomputations over confirmed payments.
	RefreshBountyAggregates(ctx context.Context, bountyID int64) error
	RefreshAllBountyAggregates(ctx context.Context) (int64, error)
	RecomputeBountyRankings(ctx context.Context) error

	// Payment methods
	CreatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	FindPaymentByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Payment, error)
	FindPaymentByMerchantOrderID(ctx context.Context, merchantOrderID uuid.UUID) (*domain.Payment, error)
	FindPendingPaymentByAddress(ctx context.Context, address string) (*domain.Payment, error)
	ConfirmPixPayment(ctx context.Context, paymentID int64, fiatAmount int64) error
	ConfirmAssetPayment(ctx context.Context, paymentID int64, params ConfirmAssetPaymentParams) error
	MarkPaymentExpired(ctx context.Context, paymentID int64) error
	MarkPaymentFailed(ctx context.Context, paymentID int64) error

	// NextDepositAddressIndex atomically advances the wallet index counter and
	// returns the new value. The counter is seeded from baseOffset on first use
	// and never hands the same index to two callers.
	NextDepositAddressIndex(ctx context.Context, baseOffset int64) (int64, error)
}

// ConfirmAssetPaymentParams carries the on-chain facts persisted when an asset
// contribution is confirmed.
type ConfirmAssetPaymentParams struct {
	NativeAmount int64
	FiatAmount   int64
	OnchainTxID  string
	OnchainVout  int
	BlockHeight  int64
}
