package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/erdum/Necessi-sub000/internal/domain/bids"
	"github.com/erdum/Necessi-sub000/internal/domain/posts"
	"github.com/erdum/Necessi-sub000/internal/domain/users"
	"github.com/erdum/Necessi-sub000/internal/events"
)

// Gateway wraps the external payment processor. Implementations normalize
// processor failures to ErrCardDeclined / ErrGateway and never retry a
// charge on their own.
type Gateway interface {
	// EnsureCustomer returns the processor customer id for the user,
	// creating the customer keyed by email when none exists.
	EnsureCustomer(ctx context.Context, user *users.User) (string, error)

	// Charge captures funds. Amount is in minor currency units and the
	// idempotency key must be set by the caller.
	Charge(ctx context.Context, params ChargeParams) (*Receipt, error)

	// Refund reverses a captured charge, returning the refund id.
	Refund(ctx context.Context, chargeID string) (string, error)

	// Payout transfers funds to an external bank account.
	Payout(ctx context.Context, bankAccountID string, amount int64) (string, error)
}

// OrderRepository defines the interface for order persistence.
type OrderRepository interface {
	// SaveOrder inserts an order within a transaction. The unique
	// constraints on post_id and bid_id make a duplicate insert fail.
	SaveOrder(ctx context.Context, tx pgx.Tx, order *Order) error

	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error)

	// GetOrderByBidID returns nil without error when the bid has no order.
	GetOrderByBidID(ctx context.Context, bidID uuid.UUID) (*Order, error)

	// MarkReceived stamps received_by_borrower or received_by_lender.
	MarkReceived(ctx context.Context, orderID uuid.UUID, role ReceiptRole) error
}

// TransactionRepository defines the interface for transaction persistence.
type TransactionRepository interface {
	SaveTransaction(ctx context.Context, tx pgx.Tx, transaction *Transaction) error
}

// BidReader is the slice of bid persistence payment capture needs.
type BidReader interface {
	GetBidByID(ctx context.Context, bidID uuid.UUID) (*bids.Bid, error)
}

// PostReader resolves the post a bid settles against.
type PostReader interface {
	GetPostByID(ctx context.Context, postID uuid.UUID) (*posts.Post, error)
}

// UserRepository reads payer/payee records and caches gateway identifiers
// on them.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*users.User, error)
	GetUserByGatewayAccount(ctx context.Context, accountID string) (*users.User, error)
	SaveCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	SaveBankAccount(ctx context.Context, userID uuid.UUID, bankAccountID string) error
}

// OutboxRepository defines the interface for outbox event persistence.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
