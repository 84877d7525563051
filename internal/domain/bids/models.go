package bids

import (
	"time"

	"github.com/google/uuid"
)

// BidStatus is the lifecycle state of a bid.
// pending -> accepted | rejected; there is no transition out of rejected.
// A bid leaves the system entirely on withdrawal or expiry.
type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
)

// Bid is an offer by a user to take a post at a given amount. Lower wins:
// each new bid must undercut the current lowest bid on the post.
type Bid struct {
	ID        uuid.UUID `db:"id"`
	PostID    uuid.UUID `db:"post_id"`
	UserID    uuid.UUID `db:"user_id"`
	Amount    int64     `db:"amount"`
	Status    BidStatus `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// AwardPolicy governs what happens to sibling bids when one is accepted.
type AwardPolicy string

const (
	// AwardPolicySingle refuses to accept a bid while another bid on the
	// same post is already accepted.
	AwardPolicySingle AwardPolicy = "single"
	// AwardPolicyCascade rejects all pending siblings in the same
	// transaction that accepts the winner.
	AwardPolicyCascade AwardPolicy = "cascade"
)
