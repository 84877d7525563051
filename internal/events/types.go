package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event. It doubles as the
// RabbitMQ routing key on the settlement exchange.
type EventType string

const (
	EventTypeBidCreated   EventType = "bid.created"
	EventTypeBidUpdated   EventType = "bid.updated"
	EventTypeBidDeleted   EventType = "bid.deleted"
	EventTypeOrderCreated EventType = "order.created"
)

// Exchange is the topic exchange all settlement events are published to.
const Exchange = "settlement.events"

// String returns the string representation of the event type.
func (e EventType) String() string {
	return string(e)
}

// BidUpserted is the payload for bid.created and bid.updated. It carries
// the denormalized bidder display data the mirror serves to live clients.
// LowestBidID is set when the mutation changed which bid is lowest; nil
// (status-only updates) means the mirror must leave its pointer alone.
type BidUpserted struct {
	BidID       uuid.UUID  `json:"bid_id"`
	PostID      uuid.UUID  `json:"post_id"`
	UserID      uuid.UUID  `json:"user_id"`
	Amount      int64      `json:"amount"`
	Status      string     `json:"status"`
	UserName    string     `json:"user_name"`
	UserAvatar  string     `json:"user_avatar"`
	CreatedAt   time.Time  `json:"created_at"`
	LowestBidID *uuid.UUID `json:"lowest_bid_id,omitempty"`
}

// BidDeleted is the payload for bid.deleted. LowestBidID is the
// next-lowest remaining bid for the post, computed by the deleting
// transaction; nil means the pointer must be cleared.
type BidDeleted struct {
	BidID       uuid.UUID  `json:"bid_id"`
	PostID      uuid.UUID  `json:"post_id"`
	UserID      uuid.UUID  `json:"user_id"`
	LowestBidID *uuid.UUID `json:"lowest_bid_id,omitempty"`
}

// OrderCreated is the payload for order.created. UserID is the winning
// bidder, carried so the mirror can locate the bid entry by (post, user).
type OrderCreated struct {
	OrderID       uuid.UUID `json:"order_id"`
	PostID        uuid.UUID `json:"post_id"`
	BidID         uuid.UUID `json:"bid_id"`
	UserID        uuid.UUID `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Unmarshal decodes a JSON event payload into the given type.
func Unmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
