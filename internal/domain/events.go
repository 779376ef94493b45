package domain

import "time"

// PixWebhookEvent is the payload the PIX processor delivers to our webhook
// endpoint. Status and Event carry an equivalent vocabulary; the reconciler
// treats whichever is present as authoritative. Amount is in centavos.
type PixWebhookEvent struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Event           string `json:"event"`
	MerchantOrderID string `json:"merchant_order_id"`
	Amount          int64  `json:"amount"`
}

// DepositDetectedEvent is the message emitted by the chain-watcher collaborator
// when a transfer to one of our deposit addresses appears on the Liquid network.
type DepositDetectedEvent struct {
	EventID     string    `json:"event_id"`
	Address     string    `json:"address"`
	TxID        string    `json:"txid"`
	Vout        int       `json:"vout"`
	AssetKind   string    `json:"asset_kind"`
	Amount      int64     `json:"amount"` // smallest on-chain unit
	BlockHeight int64     `json:"block_height"`
	DetectedAt  time.Time `json:"detected_at"`
}
