package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StaleBid is an accepted bid that never converted to a paid order.
type StaleBid struct {
	BidID  uuid.UUID
	PostID uuid.UUID
}

// PaymentDue is an accepted bid whose post owner has not paid yet.
type PaymentDue struct {
	BidID     uuid.UUID
	PostID    uuid.UUID
	OwnerID   uuid.UUID
	PostTitle string
	Amount    int64
}

// HandoverDue is a paid order whose pickup or return has not been
// confirmed by the relevant party.
type HandoverDue struct {
	OrderID     uuid.UUID
	BidID       uuid.UUID
	PostID      uuid.UUID
	RecipientID uuid.UUID
	PostTitle   string
}

// SweepRepository supplies the candidate sets for the three sweeps. Each
// query is read-only; mutations go through the bid lifecycle engine so the
// mirror stays in sync.
type SweepRepository interface {
	// StaleAcceptedBids returns accepted bids last touched before the
	// cutoff that have no order.
	StaleAcceptedBids(ctx context.Context, cutoff time.Time) ([]StaleBid, error)

	// BidsAwaitingPayment returns accepted bids with no order at all.
	BidsAwaitingPayment(ctx context.Context) ([]PaymentDue, error)

	// OrdersAwaitingPickup returns paid item orders whose post start date
	// has passed and the borrower has not confirmed receipt.
	OrdersAwaitingPickup(ctx context.Context, now time.Time) ([]HandoverDue, error)

	// OrdersAwaitingReturn returns paid orders whose post end date has
	// passed and the lender has not confirmed the return.
	OrdersAwaitingReturn(ctx context.Context, now time.Time) ([]HandoverDue, error)
}

// BidExpirer removes a stale accepted bid through the lifecycle engine.
type BidExpirer interface {
	ExpireBid(ctx context.Context, bidID uuid.UUID) error
}
