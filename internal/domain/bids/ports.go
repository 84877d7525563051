package bids

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/erdum/Necessi-sub000/internal/domain/posts"
	"github.com/erdum/Necessi-sub000/internal/domain/users"
	"github.com/erdum/Necessi-sub000/internal/events"
)

// BidRepository defines the interface for bid persistence.
type BidRepository interface {
	// SaveBid inserts a bid within a transaction.
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// UpdateBid updates amount, status and updated_at within a transaction.
	UpdateBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// DeleteBid removes a bid within a transaction.
	DeleteBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error

	// GetBidByID retrieves a bid by its ID.
	GetBidByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)

	// GetBidByIDForUpdate retrieves a bid and locks its row.
	// Must be called within a transaction.
	GetBidByIDForUpdate(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*Bid, error)

	// GetBidByPostAndUser retrieves a user's current bid on a post, if any.
	// Returns nil without error when the user has no bid.
	GetBidByPostAndUser(ctx context.Context, tx pgx.Tx, postID, userID uuid.UUID) (*Bid, error)

	// GetLowestBidForPost returns the lowest remaining bid on the post, or
	// nil when the post has no bids. Runs inside the caller's transaction
	// so a preceding DELETE in the same transaction is observed.
	GetLowestBidForPost(ctx context.Context, tx pgx.Tx, postID uuid.UUID) (*Bid, error)

	// CountAcceptedForPost counts accepted bids on the post excluding the
	// given bid id.
	CountAcceptedForPost(ctx context.Context, tx pgx.Tx, postID, excludeBidID uuid.UUID) (int64, error)

	// RejectPendingSiblings flips every pending bid on the post except the
	// winner to rejected, returning the ids it touched.
	RejectPendingSiblings(ctx context.Context, tx pgx.Tx, postID, winnerBidID uuid.UUID) ([]uuid.UUID, error)

	// GetBidsByPostID retrieves all bids for a post, lowest first.
	GetBidsByPostID(ctx context.Context, postID uuid.UUID) ([]*Bid, error)
}

// PostRepository is the slice of post persistence the lifecycle engine needs.
type PostRepository interface {
	// GetPostByIDForUpdate retrieves a post and locks its row so concurrent
	// submits/accepts on the same post serialize. Must be called within a
	// transaction.
	GetPostByIDForUpdate(ctx context.Context, tx pgx.Tx, postID uuid.UUID) (*posts.Post, error)
}

// UserRepository supplies the bidder display data denormalized into mirror
// documents.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*users.User, error)
}

// OrderChecker guards deletions: a bid that settled into an order must
// never be purged.
type OrderChecker interface {
	OrderExistsForBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (bool, error)
}

// OutboxRepository defines the interface for outbox event persistence.
type OutboxRepository interface {
	// SaveEvent saves an outbox event within a transaction.
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
