package app

import (
	"context"
	"errors"
	"testing"

	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
)

func TestCreatePixPayment_PersistsPendingRowWithCorrelationKeys(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{})

	bounty := seedBounty(repo, "Fund me", "creator-1", domain.BountyStatusApproved)

	resp, err := service.CreatePixPayment(context.Background(), bounty.ID, "payer-1", "Payer One", 1500)
	if err != nil {
		t.Fatalf("CreatePixPayment failed: %v", err)
	}
	if resp.QRCopyPaste == "" {
		t.Fatal("expected the QR payload from the processor")
	}
	if resp.MerchantOrderID == "" {
		t.Fatal("expected a merchant order id")
	}

	payment := repo.payment(resp.PaymentID)
	if payment == nil {
		t.Fatalf("payment %d not persisted", resp.PaymentID)
	}
	if payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", payment.Status)
	}
	if payment.Method != domain.PaymentMethodPix {
		t.Fatalf("expected method pix, got %s", payment.Method)
	}
	if payment.FiatAmount != 1500 {
		t.Fatalf("expected gross amount 1500 on the pending row, got %d", payment.FiatAmount)
	}
	if payment.ProviderPaymentID == nil || *payment.ProviderPaymentID == "" {
		t.Fatal("expected the processor charge id recorded")
	}
	if payment.MerchantOrderID == nil || payment.MerchantOrderID.String() != resp.MerchantOrderID {
		t.Fatal("expected the merchant order id recorded on the row")
	}
	if payment.DepositAddress == "" || payment.AddressIndex <= 10000 {
		t.Fatalf("expected an allocated deposit address, got %q index %d", payment.DepositAddress, payment.AddressIndex)
	}
}

func TestCreatePixPayment_RejectsNonPositiveAmount(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{})

	bounty := seedBounty(repo, "Fund me", "creator-1", domain.BountyStatusApproved)

	if _, err := service.CreatePixPayment(context.Background(), bounty.ID, "payer-1", "Payer One", 0); err == nil {
		t.Fatal("expected an error for a zero amount")
	}
	if _, err := service.CreatePixPayment(context.Background(), bounty.ID, "payer-1", "Payer One", -100); err == nil {
		t.Fatal("expected an error for a negative amount")
	}
}

func TestCreatePixPayment_RequiresFundableBounty(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{})

	pending := seedBounty(repo, "Awaiting review", "creator-1", domain.BountyStatusPendingReview)
	_, err := service.CreatePixPayment(context.Background(), pending.ID, "payer-1", "Payer One", 1000)
	if !errors.Is(err, ErrNotFundable) {
		t.Fatalf("expected ErrNotFundable for a pending_review bounty, got %v", err)
	}

	taken := seedBounty(repo, "Already claimed", "creator-1", domain.BountyStatusTaken)
	_, err = service.CreatePixPayment(context.Background(), taken.ID, "payer-1", "Payer One", 1000)
	if !errors.Is(err, ErrNotFundable) {
		t.Fatalf("expected ErrNotFundable for a taken bounty, got %v", err)
	}

	_, err = service.CreatePixPayment(context.Background(), 99999, "payer-1", "Payer One", 1000)
	if !errors.Is(err, store.ErrBountyNotFound) {
		t.Fatalf("expected ErrBountyNotFound for an unknown bounty, got %v", err)
	}
}

func TestCreatePixPayment_ProcessorFailureWritesNothing(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{})
	service.pixClient = &fakePixClient{fail: true}

	bounty := seedBounty(repo, "Fund me", "creator-1", domain.BountyStatusApproved)

	if _, err := service.CreatePixPayment(context.Background(), bounty.ID, "payer-1", "Payer One", 1000); err == nil {
		t.Fatal("expected an error when the processor is down")
	}
	if payment := repo.payment(1); payment != nil {
		t.Fatal("no payment row may exist after a failed charge creation")
	}
}

func TestCreateAssetPayment_RejectsUnknownAssetKind(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{})

	bounty := seedBounty(repo, "Fund me", "creator-1", domain.BountyStatusApproved)

	_, err := service.CreateAssetPayment(context.Background(), bounty.ID, "payer-1", "Payer One", "doge")
	if !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset, got %v", err)
	}
}

func TestCreateAssetPayment_OpensZeroAmountPendingRow(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{})

	bounty := seedBounty(repo, "Fund me on-chain", "creator-1", domain.BountyStatusApproved)

	resp, err := service.CreateAssetPayment(context.Background(), bounty.ID, "payer-1", "Payer One", domain.PaymentMethodDepix)
	if err != nil {
		t.Fatalf("CreateAssetPayment failed: %v", err)
	}
	if resp.DepositAddress == "" {
		t.Fatal("expected a deposit address")
	}

	payment := repo.payment(resp.PaymentID)
	if payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", payment.Status)
	}
	if payment.NativeAmount != 0 || payment.FiatAmount != 0 {
		t.Fatalf("amounts are unknown at creation, got native=%d fiat=%d", payment.NativeAmount, payment.FiatAmount)
	}
	if payment.Method != domain.PaymentMethodDepix {
		t.Fatalf("expected method depix, got %s", payment.Method)
	}
	if payment.DepositAddress != resp.DepositAddress {
		t.Fatal("response address must match the persisted row")
	}
}
