package settlement

import (
	"time"

	"github.com/google/uuid"
)

// Order is the record of a bid's conversion into a paid engagement. A post
// and a bid can each settle into at most one order; the database enforces
// both with unique constraints.
type Order struct {
	ID                 uuid.UUID  `db:"id"`
	PostID             uuid.UUID  `db:"post_id"`
	BidID              uuid.UUID  `db:"bid_id"`
	TransactionID      *string    `db:"transaction_id"`
	ReceivedByBorrower *time.Time `db:"received_by_borrower"`
	ReceivedByLender   *time.Time `db:"received_by_lender"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// Transaction is an immutable record of a captured charge. The id is
// issued by the payment gateway.
type Transaction struct {
	ID        string    `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// Receipt is the normalized result of a successful charge.
type Receipt struct {
	ChargeID string
	Status   string
}

// ChargeParams carries everything the gateway needs to capture funds.
// Amount is in the processor's minor currency unit. The idempotency key is
// caller-generated so a retried capture maps to a single charge.
type ChargeParams struct {
	CustomerID      string
	PaymentMethodID string
	Amount          int64
	IdempotencyKey  string
	Description     string
}

// ReceiptRole identifies which party is confirming a hand-over.
type ReceiptRole string

const (
	ReceiptRoleBorrower ReceiptRole = "borrower"
	ReceiptRoleLender   ReceiptRole = "lender"
)
