package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/bountypix/bounty-service/internal/domain"
)

// DepositConsumer bridges chain-watcher detections from the message queue into
// the asset reconciler. The return value drives acking: true acks the message,
// false nacks it back onto the queue for redelivery.
type DepositConsumer struct {
	service *Service
}

// NewDepositConsumer creates a consumer over the given service.
func NewDepositConsumer(service *Service) *DepositConsumer {
	return &DepositConsumer{service: service}
}

// HandleMessage processes one deposit-detection delivery. Poison messages (bad
// JSON, missing correlation fields) are acked and dropped; transient failures
// (store, price service) are requeued and the reconciler's idempotency absorbs
// the replay.
func (c *DepositConsumer) HandleMessage(body []byte) bool {
	var event domain.DepositDetectedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=deposit_consumer msg=\"failed to unmarshal payload; dropping\" err=%v", err)
		return true
	}

	if event.Address == "" || event.TxID == "" {
		log.Printf("level=warn component=deposit_consumer msg=\"missing address or txid; dropping\" event_id=%s", event.EventID)
		return true
	}
	if event.Amount <= 0 {
		log.Printf("level=warn component=deposit_consumer msg=\"non-positive amount; dropping\" event_id=%s txid=%s", event.EventID, event.TxID)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	payment, err := c.service.ProcessAssetDetection(ctx, event)
	if err != nil {
		log.Printf("level=warn component=deposit_consumer msg=\"processing error; re-queuing\" txid=%s err=%v", event.TxID, err)
		return false
	}

	if payment == nil {
		log.Printf("level=info component=deposit_consumer msg=\"detection was a no-op\" address=%s txid=%s", event.Address, event.TxID)
	}
	return true
}
