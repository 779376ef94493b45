/**
 * @description
 * Payment gateway: opens pending contributions on either rail. A PIX
 * contribution goes out to the external processor and comes back with QR
 * artifacts; an on-chain contribution only needs a fresh deposit address —
 * the payer sends an arbitrary amount later and the chain watcher reports it.
 *
 * Creation-path errors (funding guard, allocator, processor) propagate to the
 * caller and abort the operation before any payment row is written.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/pkg/pixclient"
)

// CreatePixPayment opens a PIX contribution toward an approved bounty. The
// processor's charge id and our merchant order id become the correlation keys
// the webhook reconciles on later.
func (s *Service) CreatePixPayment(ctx context.Context, bountyID int64, payerID, payerName string, amountCents int64) (*domain.PixPaymentResponse, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("contribution amount must be positive")
	}

	bounty, err := s.fundableBounty(ctx, bountyID)
	if err != nil {
		return nil, err
	}

	allocated, err := s.AllocateDepositAddress(ctx)
	if err != nil {
		return nil, err
	}

	merchantOrderID := uuid.New()
	charge, err := s.pixClient.CreateCharge(ctx, pixclient.CreateChargeRequest{
		AmountCents:     amountCents,
		Description:     fmt.Sprintf("Bounty #%d: %s", bounty.ID, bounty.Title),
		DepositAddress:  allocated.Address,
		MerchantOrderID: merchantOrderID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("pix charge creation failed: %w", err)
	}

	payment := &domain.Payment{
		BountyID:          bounty.ID,
		PayerID:           payerID,
		PayerDisplayName:  payerName,
		Method:            domain.PaymentMethodPix,
		FiatAmount:        amountCents,
		DepositAddress:    allocated.Address,
		AddressIndex:      allocated.Index,
		ProviderPaymentID: &charge.ID,
		MerchantOrderID:   &merchantOrderID,
		Status:            domain.PaymentStatusPending,
	}
	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to persist pix payment: %w", err)
	}

	log.Printf("level=info component=gateway msg=\"pix payment opened\" payment_id=%d bounty_id=%d amount_cents=%d provider_payment_id=%s",
		payment.ID, bounty.ID, amountCents, charge.ID)

	return &domain.PixPaymentResponse{
		PaymentID:       payment.ID,
		BountyID:        bounty.ID,
		AmountCents:     amountCents,
		QRCopyPaste:     charge.QRCopyPaste,
		QRImageURL:      charge.QRImageURL,
		MerchantOrderID: merchantOrderID.String(),
		ExpiresAt:       charge.ExpiresAt,
	}, nil
}

// CreateAssetPayment opens an on-chain contribution toward an approved bounty.
// No amount is known yet; the row carries zero amounts until the chain watcher
// detects the transfer.
func (s *Service) CreateAssetPayment(ctx context.Context, bountyID int64, payerID, payerName, assetKind string) (*domain.AssetPaymentResponse, error) {
	if !domain.IsAssetKind(assetKind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAsset, assetKind)
	}

	bounty, err := s.fundableBounty(ctx, bountyID)
	if err != nil {
		return nil, err
	}

	allocated, err := s.AllocateDepositAddress(ctx)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		BountyID:         bounty.ID,
		PayerID:          payerID,
		PayerDisplayName: payerName,
		Method:           assetKind,
		DepositAddress:   allocated.Address,
		AddressIndex:     allocated.Index,
		Status:           domain.PaymentStatusPending,
	}
	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to persist asset payment: %w", err)
	}

	log.Printf("level=info component=gateway msg=\"asset payment opened\" payment_id=%d bounty_id=%d asset_kind=%s address=%s",
		payment.ID, bounty.ID, assetKind, allocated.Address)

	return &domain.AssetPaymentResponse{
		PaymentID:      payment.ID,
		BountyID:       bounty.ID,
		AssetKind:      assetKind,
		DepositAddress: allocated.Address,
		AddressIndex:   allocated.Index,
	}, nil
}

// fundableBounty loads a bounty and checks it is open for contributions.
func (s *Service) fundableBounty(ctx context.Context, bountyID int64) (*domain.Bounty, error) {
	bounty, err := s.repo.FindBountyByID(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.Status != domain.BountyStatusApproved {
		return nil, fmt.Errorf("%w: bounty %d is %s", ErrNotFundable, bounty.ID, bounty.Status)
	}
	return bounty, nil
}
