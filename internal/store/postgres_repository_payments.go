/**
 * @description
 * PostgreSQL implementation of the payment side of the `Repository` interface:
 * contribution rows for both rails, the guarded pending→terminal transitions the
 * reconciler relies on, and the atomic wallet address-index counter.
 *
 * @notes
 * - A payment row is written exactly once by the gateway (status 'pending') and
 *   transitioned exactly once by the reconciler. The `AND status = 'pending'`
 *   guard on every terminal update is what makes duplicate webhook deliveries
 *   and re-scans collapse into no-ops.
 * - The index counter is advanced with a single upsert so two concurrent
 *   allocations can never observe the same value.
 */

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bountypix/bounty-service/internal/domain"
)

// CreatePayment inserts a pending contribution row and returns it with its
// generated id and timestamps filled in.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	query := `
		INSERT INTO bounty_payments (
			bounty_id,
			payer_id,
			payer_display_name,
			method,
			native_amount,
			fiat_amount_cents,
			deposit_address,
			address_index,
			provider_payment_id,
			merchant_order_id,
			status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		payment.BountyID,
		payment.PayerID,
		payment.PayerDisplayName,
		payment.Method,
		payment.NativeAmount,
		payment.FiatAmount,
		payment.DepositAddress,
		payment.AddressIndex,
		payment.ProviderPaymentID,
		payment.MerchantOrderID,
		payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}
	return payment, nil
}

// FindPaymentByProviderPaymentID looks a payment up by the PIX processor's id,
// the fiat rail's correlation key.
func (r *PostgresRepository) FindPaymentByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Payment, error) {
	query := `
		SELECT id, bounty_id, payer_id, payer_display_name, method,
		       native_amount, fiat_amount_cents, deposit_address, address_index,
		       provider_payment_id, merchant_order_id, onchain_tx_id, onchain_vout,
		       block_height, status, confirmed_at, created_at, updated_at
		FROM bounty_payments
		WHERE provider_payment_id = $1
	`
	return r.scanOnePayment(ctx, query, providerPaymentID)
}

// FindPaymentByMerchantOrderID looks a payment up by the merchant order id we
// minted at creation time.
func (r *PostgresRepository) FindPaymentByMerchantOrderID(ctx context.Context, merchantOrderID uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT id, bounty_id, payer_id, payer_display_name, method,
		       native_amount, fiat_amount_cents, deposit_address, address_index,
		       provider_payment_id, merchant_order_id, onchain_tx_id, onchain_vout,
		       block_height, status, confirmed_at, created_at, updated_at
		FROM bounty_payments
		WHERE merchant_order_id = $1
	`
	return r.scanOnePayment(ctx, query, merchantOrderID)
}

// FindPendingPaymentByAddress looks up the pending payment expecting funds at a
// deposit address. Addresses are handed out once per payment, so at most one
// pending row can match; the oldest wins if the invariant is ever violated.
func (r *PostgresRepository) FindPendingPaymentByAddress(ctx context.Context, address string) (*domain.Payment, error) {
	query := `
		SELECT id, bounty_id, payer_id, payer_display_name, method,
		       native_amount, fiat_amount_cents, deposit_address, address_index,
		       provider_payment_id, merchant_order_id, onchain_tx_id, onchain_vout,
		       block_height, status, confirmed_at, created_at, updated_at
		FROM bounty_payments
		WHERE deposit_address = $1 AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
	`
	return r.scanOnePayment(ctx, query, address)
}

func (r *PostgresRepository) scanOnePayment(ctx context.Context, query string, args ...interface{}) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&payment.ID,
		&payment.BountyID,
		&payment.PayerID,
		&payment.PayerDisplayName,
		&payment.Method,
		&payment.NativeAmount,
		&payment.FiatAmount,
		&payment.DepositAddress,
		&payment.AddressIndex,
		&payment.ProviderPaymentID,
		&payment.MerchantOrderID,
		&payment.OnchainTxID,
		&payment.OnchainVout,
		&payment.BlockHeight,
		&payment.Status,
		&payment.ConfirmedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// ConfirmPixPayment finalizes a fiat contribution with its net fiat amount.
// Only a pending row matches; a duplicate delivery that lost the race gets
// ErrPaymentAlreadyFinal and must treat it as a no-op.
func (r *PostgresRepository) ConfirmPixPayment(ctx context.Context, paymentID int64, fiatAmount int64) error {
	query := `
		UPDATE bounty_payments
		SET status = 'confirmed', fiat_amount_cents = $2, confirmed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, paymentID, fiatAmount)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentAlreadyFinal
	}
	return nil
}

// ConfirmAssetPayment finalizes an on-chain contribution with the detected
// amounts and correlation facts.
func (r *PostgresRepository) ConfirmAssetPayment(ctx context.Context, paymentID int64, params ConfirmAssetPaymentParams) error {
	query := `
		UPDATE bounty_payments
		SET status = 'confirmed',
		    native_amount = $2,
		    fiat_amount_cents = $3,
		    onchain_tx_id = $4,
		    onchain_vout = $5,
		    block_height = $6,
		    confirmed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query,
		paymentID,
		params.NativeAmount,
		params.FiatAmount,
		params.OnchainTxID,
		params.OnchainVout,
		params.BlockHeight,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentAlreadyFinal
	}
	return nil
}

// MarkPaymentExpired records the processor-asserted expiry of a pending payment.
func (r *PostgresRepository) MarkPaymentExpired(ctx context.Context, paymentID int64) error {
	query := `
		UPDATE bounty_payments
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, paymentID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentAlreadyFinal
	}
	return nil
}

// MarkPaymentFailed records a terminal processor failure for a pending payment.
func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, paymentID int64) error {
	query := `
		UPDATE bounty_payments
		SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, paymentID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentAlreadyFinal
	}
	return nil
}

// NextDepositAddressIndex advances the wallet index counter and returns the new
// index. The first call seeds the counter past the configured offset; every call
// after that increments the stored value. The upsert holds the row lock for the
// duration of the statement, so concurrent callers serialize at the store and
// never receive the same index.
func (r *PostgresRepository) NextDepositAddressIndex(ctx context.Context, baseOffset int64) (int64, error) {
	query := `
		INSERT INTO wallet_index_counter (id, last_index, updated_at)
		VALUES (1, $1 + 1, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			last_index = wallet_index_counter.last_index + 1,
			updated_at = NOW()
		RETURNING last_index
	`
	var index int64
	if err := r.db.QueryRow(ctx, query, baseOffset).Scan(&index); err != nil {
		return 0, fmt.Errorf("failed to advance wallet index counter: %w", err)
	}
	return index, nil
}
