/**
 * @description
 * Payment reconciliation: the two idempotent entry points that consume
 * asynchronous confirmation events — PIX webhook deliveries for the fiat rail
 * and chain-watcher detections for the asset rail — and advance payment and
 * bounty state exactly once.
 *
 * Idempotency rests on the store's pending-only guards, not on suppressing
 * redelivery: a duplicate delivery either finds the payment already terminal
 * (no-op) or loses the conditional update race (no-op). Bounty totals are
 * never incremented in place; each confirmation triggers a full recomputation
 * over confirmed payments, so a retried write can never double-count.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
)

// Reconciliation outcomes for the fiat vocabulary mapping.
const (
	outcomeConfirmed = "confirmed"
	outcomeExpired   = "expired"
	outcomeFailed    = "failed"
	outcomeIgnored   = ""
)

// ProcessFiatNotification applies one PIX webhook delivery. Unknown correlation
// keys return store.ErrPaymentNotFound with no side effects; duplicate or late
// deliveries for an already-terminal payment are successful no-ops.
func (s *Service) ProcessFiatNotification(ctx context.Context, event domain.PixWebhookEvent) error {
	payment, err := s.lookupFiatPayment(ctx, event)
	if err != nil {
		return err
	}

	if domain.IsTerminalPaymentStatus(payment.Status) {
		log.Printf("level=info component=reconciler rail=pix msg=\"payment already terminal; ignoring redelivery\" payment_id=%d status=%s provider_payment_id=%s",
			payment.ID, payment.Status, event.ID)
		return nil
	}

	switch normalizePixOutcome(event.Status, event.Event) {
	case outcomeConfirmed:
		return s.confirmFiatPayment(ctx, payment, event.Amount)
	case outcomeExpired:
		if err := s.repo.MarkPaymentExpired(ctx, payment.ID); err != nil {
			if errors.Is(err, store.ErrPaymentAlreadyFinal) {
				return nil
			}
			return fmt.Errorf("mark expired: %w", err)
		}
		log.Printf("level=info component=reconciler rail=pix msg=\"payment expired\" payment_id=%d", payment.ID)
		return nil
	case outcomeFailed:
		if err := s.repo.MarkPaymentFailed(ctx, payment.ID); err != nil {
			if errors.Is(err, store.ErrPaymentAlreadyFinal) {
				return nil
			}
			return fmt.Errorf("mark failed: %w", err)
		}
		log.Printf("level=info component=reconciler rail=pix msg=\"payment failed\" payment_id=%d", payment.ID)
		return nil
	default:
		// Non-terminal processor chatter ("created", "processing", ...).
		log.Printf("level=info component=reconciler rail=pix msg=\"non-terminal notification ignored\" payment_id=%d status=%q event=%q",
			payment.ID, event.Status, event.Event)
		return nil
	}
}

func (s *Service) confirmFiatPayment(ctx context.Context, payment *domain.Payment, reportedAmount int64) error {
	netAmount := reportedAmount - s.pixFeeCents
	if netAmount < 0 {
		netAmount = 0
	}

	if err := s.repo.ConfirmPixPayment(ctx, payment.ID, netAmount); err != nil {
		if errors.Is(err, store.ErrPaymentAlreadyFinal) {
			// A concurrent delivery won the race; everything below already ran.
			return nil
		}
		return fmt.Errorf("confirm pix payment: %w", err)
	}

	log.Printf("level=info component=reconciler rail=pix msg=\"payment confirmed\" payment_id=%d bounty_id=%d gross_cents=%d net_cents=%d",
		payment.ID, payment.BountyID, reportedAmount, netAmount)

	s.refreshFunding(ctx, payment.BountyID)

	s.notifyUser(ctx, payment.PayerID, fmt.Sprintf("Your contribution of %s to bounty #%d is confirmed. Thank you!", formatCents(netAmount), payment.BountyID))
	if s.largeContribCents > 0 && netAmount >= s.largeContribCents {
		s.notifyAdmins(ctx, fmt.Sprintf("Large contribution: %s confirmed on bounty #%d by %s.", formatCents(netAmount), payment.BountyID, payment.PayerDisplayName))
	}
	return nil
}

// ProcessAssetDetection applies one chain-watcher detection. A nil payment with
// a nil error means nothing to do: no pending payment at that address, or a
// re-scan of a transaction that was already consumed.
func (s *Service) ProcessAssetDetection(ctx context.Context, event domain.DepositDetectedEvent) (*domain.Payment, error) {
	payment, err := s.repo.FindPendingPaymentByAddress(ctx, event.Address)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			// Already consumed by an earlier scan, or not one of our addresses.
			log.Printf("level=info component=reconciler rail=asset msg=\"no pending payment at address; ignoring\" address=%s txid=%s", event.Address, event.TxID)
			return nil, nil
		}
		return nil, fmt.Errorf("lookup payment by address: %w", err)
	}

	if payment.OnchainTxID != nil && *payment.OnchainTxID == event.TxID {
		log.Printf("level=info component=reconciler rail=asset msg=\"duplicate re-scan ignored\" payment_id=%d txid=%s", payment.ID, event.TxID)
		return nil, nil
	}

	if payment.Method != event.AssetKind {
		log.Printf("level=warn component=reconciler rail=asset msg=\"detected asset kind differs from the opened payment\" payment_id=%d expected=%s detected=%s",
			payment.ID, payment.Method, event.AssetKind)
	}

	fiatAmount, err := s.rateClient.ConvertToFiat(ctx, event.AssetKind, event.Amount)
	if err != nil {
		return nil, fmt.Errorf("price conversion failed: %w", err)
	}

	err = s.repo.ConfirmAssetPayment(ctx, payment.ID, store.ConfirmAssetPaymentParams{
		NativeAmount: event.Amount,
		FiatAmount:   fiatAmount,
		OnchainTxID:  event.TxID,
		OnchainVout:  event.Vout,
		BlockHeight:  event.BlockHeight,
	})
	if err != nil {
		if errors.Is(err, store.ErrPaymentAlreadyFinal) {
			// A concurrent scan of the same detection won the race.
			return nil, nil
		}
		return nil, fmt.Errorf("confirm asset payment: %w", err)
	}

	log.Printf("level=info component=reconciler rail=asset msg=\"payment confirmed\" payment_id=%d bounty_id=%d asset_kind=%s native_amount=%d fiat_cents=%d txid=%s",
		payment.ID, payment.BountyID, event.AssetKind, event.Amount, fiatAmount, event.TxID)

	s.refreshFunding(ctx, payment.BountyID)

	s.notifyUser(ctx, payment.PayerID, fmt.Sprintf("Your %s contribution to bounty #%d landed on-chain and is confirmed. Thank you!", strings.ToUpper(event.AssetKind), payment.BountyID))

	payment.Status = domain.PaymentStatusConfirmed
	payment.NativeAmount = event.Amount
	payment.FiatAmount = fiatAmount
	payment.OnchainTxID = &event.TxID
	payment.OnchainVout = &event.Vout
	payment.BlockHeight = &event.BlockHeight
	return payment, nil
}

// lookupFiatPayment resolves the webhook's correlation keys: the processor id
// first, then the merchant order id we minted.
func (s *Service) lookupFiatPayment(ctx context.Context, event domain.PixWebhookEvent) (*domain.Payment, error) {
	if event.ID != "" {
		payment, err := s.repo.FindPaymentByProviderPaymentID(ctx, event.ID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, store.ErrPaymentNotFound) {
			return nil, fmt.Errorf("lookup payment by provider id: %w", err)
		}
	}

	if event.MerchantOrderID != "" {
		orderID, parseErr := uuid.Parse(event.MerchantOrderID)
		if parseErr == nil {
			payment, err := s.repo.FindPaymentByMerchantOrderID(ctx, orderID)
			if err == nil {
				return payment, nil
			}
			if !errors.Is(err, store.ErrPaymentNotFound) {
				return nil, fmt.Errorf("lookup payment by merchant order id: %w", err)
			}
		}
	}

	return nil, store.ErrPaymentNotFound
}

// refreshFunding recomputes one bounty's confirmed totals and the fundable
// ranking. Both are idempotent derived writes; failures are logged and the
// cron safety net repairs them on the next run.
func (s *Service) refreshFunding(ctx context.Context, bountyID int64) {
	if err := s.repo.RefreshBountyAggregates(ctx, bountyID); err != nil {
		log.Printf("level=warn component=reconciler msg=\"aggregate refresh failed\" bounty_id=%d err=%v", bountyID, err)
	}
	s.recomputeRankings(ctx)
}

// normalizePixOutcome maps the processor's status/event vocabulary onto our
// terminal outcomes. The status field wins when both carry a terminal value.
func normalizePixOutcome(status, event string) string {
	if outcome := normalizePixWord(status); outcome != outcomeIgnored {
		return outcome
	}
	return normalizePixWord(event)
}

func normalizePixWord(word string) string {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "paid", "confirmed", "completed", "approved", "payment.confirmed", "charge.paid":
		return outcomeConfirmed
	case "expired", "payment.expired", "charge.expired":
		return outcomeExpired
	case "failed", "refused", "canceled", "cancelled", "error", "payment.failed", "charge.failed":
		return outcomeFailed
	default:
		return outcomeIgnored
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("R$ %d.%02d", cents/100, cents%100)
}
