package app

import (
	"context"
	"errors"
	"testing"

	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
)

// openPixPayment runs the real creation path and returns the persisted payment.
func openPixPayment(t *testing.T, service *Service, repo *memRepo, bountyID, amountCents int64) *domain.Payment {
	t.Helper()
	resp, err := service.CreatePixPayment(context.Background(), bountyID, "payer-1", "Payer One", amountCents)
	if err != nil {
		t.Fatalf("CreatePixPayment failed: %v", err)
	}
	payment := repo.payment(resp.PaymentID)
	if payment == nil {
		t.Fatalf("payment %d not persisted", resp.PaymentID)
	}
	return payment
}

func TestProcessFiatNotification_ConfirmsOnceAndDeductsFee(t *testing.T) {
	repo := newMemRepo()
	publisher := &recordingPublisher{}
	service := newTestService(repo, publisher, withFee(99))

	bounty := seedBounty(repo, "Dark mode", "creator-1", domain.BountyStatusApproved)
	payment := openPixPayment(t, service, repo, bounty.ID, 1000)

	event := domain.PixWebhookEvent{
		ID:     *payment.ProviderPaymentID,
		Status: "paid",
		Amount: 1000,
	}
	if err := service.ProcessFiatNotification(context.Background(), event); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	got := repo.payment(payment.ID)
	if got.Status != domain.PaymentStatusConfirmed {
		t.Fatalf("expected status confirmed, got %s", got.Status)
	}
	if got.FiatAmount != 901 {
		t.Fatalf("expected net amount 901 after fee, got %d", got.FiatAmount)
	}
	if total := repo.bounty(bounty.ID).TotalConfirmed; total != 901 {
		t.Fatalf("expected bounty total 901, got %d", total)
	}
	if publisher.userCount() != 1 {
		t.Fatalf("expected 1 payer notification, got %d", publisher.userCount())
	}

	// Redelivery of the same webhook must change nothing.
	if err := service.ProcessFiatNotification(context.Background(), event); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if total := repo.bounty(bounty.ID).TotalConfirmed; total != 901 {
		t.Fatalf("redelivery changed bounty total to %d", total)
	}
	if publisher.userCount() != 1 {
		t.Fatalf("redelivery produced an extra notification, got %d", publisher.userCount())
	}
}

func TestProcessFiatNotification_NetAmountNeverNegative(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{}, withFee(99))

	bounty := seedBounty(repo, "Tiny tip", "creator-1", domain.BountyStatusApproved)
	payment := openPixPayment(t, service, repo, bounty.ID, 50)

	err := service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		ID:     *payment.ProviderPaymentID,
		Status: "paid",
		Amount: 50,
	})
	if err != nil {
		t.Fatalf("processing failed: %v", err)
	}

	got := repo.payment(payment.ID)
	if got.Status != domain.PaymentStatusConfirmed {
		t.Fatalf("expected status confirmed, got %s", got.Status)
	}
	if got.FiatAmount != 0 {
		t.Fatalf("expected net amount clamped to 0, got %d", got.FiatAmount)
	}
}

func TestProcessFiatNotification_UnknownPaymentReturnsNotFound(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{})

	err := service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		ID:     "pix_does_not_exist",
		Status: "paid",
		Amount: 1000,
	})
	if !errors.Is(err, store.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestProcessFiatNotification_ResolvesByMerchantOrderID(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{}, withFee(0))

	bounty := seedBounty(repo, "Search filters", "creator-1", domain.BountyStatusApproved)
	payment := openPixPayment(t, service, repo, bounty.ID, 2000)

	err := service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		MerchantOrderID: payment.MerchantOrderID.String(),
		Status:          "confirmed",
		Amount:          2000,
	})
	if err != nil {
		t.Fatalf("processing failed: %v", err)
	}
	if got := repo.payment(payment.ID); got.Status != domain.PaymentStatusConfirmed {
		t.Fatalf("expected status confirmed, got %s", got.Status)
	}
}

func TestProcessFiatNotification_ExpiredAndFailedOutcomes(t *testing.T) {
	repo := newMemRepo()
	publisher := &recordingPublisher{}
	service := newTestService(repo, publisher)

	bounty := seedBounty(repo, "Export to CSV", "creator-1", domain.BountyStatusApproved)

	expired := openPixPayment(t, service, repo, bounty.ID, 1000)
	err := service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		ID:     *expired.ProviderPaymentID,
		Status: "expired",
	})
	if err != nil {
		t.Fatalf("expired delivery failed: %v", err)
	}
	if got := repo.payment(expired.ID); got.Status != domain.PaymentStatusExpired {
		t.Fatalf("expected status expired, got %s", got.Status)
	}

	failed := openPixPayment(t, service, repo, bounty.ID, 1000)
	err = service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		ID:    *failed.ProviderPaymentID,
		Event: "payment.failed",
	})
	if err != nil {
		t.Fatalf("failed delivery failed: %v", err)
	}
	if got := repo.payment(failed.ID); got.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected status failed, got %s", got.Status)
	}

	if total := repo.bounty(bounty.ID).TotalConfirmed; total != 0 {
		t.Fatalf("non-confirmed payments must not count toward the total, got %d", total)
	}
	if publisher.userCount() != 0 {
		t.Fatalf("expired/failed outcomes must not notify the payer, got %d", publisher.userCount())
	}
}

func TestProcessFiatNotification_NonTerminalStatusIsIgnored(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo, &recordingPublisher{})

	bounty := seedBounty(repo, "Webhooks", "creator-1", domain.BountyStatusApproved)
	payment := openPixPayment(t, service, repo, bounty.ID, 1000)

	err := service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		ID:     *payment.ProviderPaymentID,
		Status: "processing",
	})
	if err != nil {
		t.Fatalf("processing failed: %v", err)
	}
	if got := repo.payment(payment.ID); got.Status != domain.PaymentStatusPending {
		t.Fatalf("non-terminal status must leave the payment pending, got %s", got.Status)
	}
}

func TestProcessFiatNotification_LargeContributionAlertsAdmins(t *testing.T) {
	repo := newMemRepo()
	publisher := &recordingPublisher{}
	service := newTestService(repo, publisher,
		withFee(0),
		withAdmins("admin-1", "admin-2"),
		withLargeThreshold(5000),
	)

	bounty := seedBounty(repo, "Big ticket", "creator-1", domain.BountyStatusApproved)

	// Net exactly at the threshold fires the alert.
	atThreshold := openPixPayment(t, service, repo, bounty.ID, 5000)
	if err := service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		ID:     *atThreshold.ProviderPaymentID,
		Status: "paid",
		Amount: 5000,
	}); err != nil {
		t.Fatalf("processing failed: %v", err)
	}
	if publisher.adminCount() != 2 {
		t.Fatalf("expected 2 admin alerts at the threshold, got %d", publisher.adminCount())
	}

	// Net below the threshold does not.
	below := openPixPayment(t, service, repo, bounty.ID, 4999)
	if err := service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		ID:     *below.ProviderPaymentID,
		Status: "paid",
		Amount: 4999,
	}); err != nil {
		t.Fatalf("processing failed: %v", err)
	}
	if publisher.adminCount() != 2 {
		t.Fatalf("below-threshold contribution must not alert, got %d admin alerts", publisher.adminCount())
	}
}

func TestFiatFunding_EndToEnd(t *testing.T) {
	repo := newMemRepo()
	publisher := &recordingPublisher{}
	service := newTestService(repo, publisher, withFee(99), withAdmins("admin-1"))

	created, err := service.CreateBounty(context.Background(), "creator-1", "Creator", domain.CreateBountyRequest{
		Title:       "Offline mode",
		Description: "Make the app work without connectivity.",
	})
	if err != nil {
		t.Fatalf("CreateBounty failed: %v", err)
	}
	if created.Status != domain.BountyStatusPendingReview {
		t.Fatalf("new bounty must start in pending_review, got %s", created.Status)
	}

	if err := service.ApproveBounty(context.Background(), created.ID, "mod-1"); err != nil {
		t.Fatalf("ApproveBounty failed: %v", err)
	}

	payment := openPixPayment(t, service, repo, created.ID, 2500)
	if err := service.ProcessFiatNotification(context.Background(), domain.PixWebhookEvent{
		ID:     *payment.ProviderPaymentID,
		Status: "paid",
		Amount: 2500,
	}); err != nil {
		t.Fatalf("webhook processing failed: %v", err)
	}

	bounty := repo.bounty(created.ID)
	if bounty.TotalConfirmed != 2401 {
		t.Fatalf("expected total 2401 (2500 minus 99 fee), got %d", bounty.TotalConfirmed)
	}
	if bounty.ContributionCount != 1 {
		t.Fatalf("expected 1 confirmed contribution, got %d", bounty.ContributionCount)
	}
	if bounty.Ranking == nil || *bounty.Ranking != 1 {
		t.Fatalf("expected ranking 1 for the only fundable bounty, got %v", bounty.Ranking)
	}
}
