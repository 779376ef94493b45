/**
 * @description
 * Domain models for bounty contributions across the two payment rails: the PIX
 * instant-transfer rail and the Liquid asset rail (depix, lbtc, usdt).
 *
 * @notes
 * - Fiat amounts are `int64` centavos. Native asset amounts are `int64` in the
 *   asset's smallest on-chain unit (8 decimals).
 * - A payment is created in status 'pending' and transitions exactly once to a
 *   terminal status ('confirmed', 'expired' or 'failed'); it never leaves a
 *   terminal status and is never deleted.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment methods. PIX is the fiat rail; the rest are Liquid asset kinds.
const (
	PaymentMethodPix   = "pix"
	PaymentMethodDepix = "depix"
	PaymentMethodLbtc  = "lbtc"
	PaymentMethodUsdt  = "usdt"
)

// Payment statuses. Everything except 'pending' is terminal.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusExpired   = "expired"
	PaymentStatusFailed    = "failed"
)

// AssetKinds are the supported Liquid assets for on-chain contributions.
var AssetKinds = []string{
	PaymentMethodDepix,
	PaymentMethodLbtc,
	PaymentMethodUsdt,
}

// IsAssetKind reports whether method names a supported on-chain asset.
func IsAssetKind(method string) bool {
	for _, kind := range AssetKinds {
		if method == kind {
			return true
		}
	}
	return false
}

// IsTerminalPaymentStatus reports whether a payment status will never change again.
func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentStatusConfirmed || status == PaymentStatusExpired || status == PaymentStatusFailed
}

// Payment represents one contribution toward a bounty.
// This struct maps directly to the `bounty_payments` table in the database.
type Payment struct {
	ID                int64      `json:"id"`
	BountyID          int64      `json:"bounty_id"`
	PayerID           string     `json:"payer_id"`
	PayerDisplayName  string     `json:"payer_display_name"`
	Method            string     `json:"method"` // 'pix', 'depix', 'lbtc', 'usdt'
	NativeAmount      int64      `json:"native_amount"`      // asset rail only, smallest unit
	FiatAmount        int64      `json:"fiat_amount_cents"`  // centavos; trustworthy once confirmed
	DepositAddress    string     `json:"deposit_address"`
	AddressIndex      int64      `json:"address_index"`
	ProviderPaymentID *string    `json:"provider_payment_id,omitempty"` // PIX rail correlation key
	MerchantOrderID   *uuid.UUID `json:"merchant_order_id,omitempty"`   // PIX rail, minted at creation
	OnchainTxID       *string    `json:"onchain_tx_id,omitempty"`       // asset rail correlation key
	OnchainVout       *int       `json:"onchain_vout,omitempty"`
	BlockHeight       *int64     `json:"block_height,omitempty"`
	Status            string     `json:"status"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CreatePixPaymentRequest is the DTO for opening a PIX contribution.
type CreatePixPaymentRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// CreateAssetPaymentRequest is the DTO for opening an on-chain contribution.
type CreateAssetPaymentRequest struct {
	AssetKind string `json:"asset_kind"`
}

// PixPaymentResponse is returned after a PIX contribution is opened. It carries
// the processor artifacts the payer needs to complete the transfer.
type PixPaymentResponse struct {
	PaymentID       int64      `json:"payment_id"`
	BountyID        int64      `json:"bounty_id"`
	AmountCents     int64      `json:"amount_cents"`
	QRCopyPaste     string     `json:"qr_copy_paste"`
	QRImageURL      string     `json:"qr_image_url,omitempty"`
	MerchantOrderID string     `json:"merchant_order_id"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"` // advisory, display only
}

// AssetPaymentResponse is returned after an on-chain contribution is opened.
// The payer sends an arbitrary amount to the deposit address.
type AssetPaymentResponse struct {
	PaymentID      int64  `json:"payment_id"`
	BountyID       int64  `json:"bounty_id"`
	AssetKind      string `json:"asset_kind"`
	DepositAddress string `json:"deposit_address"`
	AddressIndex   int64  `json:"address_index"`
}

// AllocatedAddress is the result of one deposit-address derivation.
type AllocatedAddress struct {
	Address string
	Index   int64
}
