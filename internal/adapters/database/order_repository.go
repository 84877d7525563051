package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erdum/Necessi-sub000/internal/domain/settlement"
)

// PostgresOrderRepository implements settlement.OrderRepository,
// settlement.TransactionRepository and bids.OrderChecker using pgx
type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository
func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

const orderColumns = `id, post_id, bid_id, transaction_id, received_by_borrower, received_by_lender, created_at, updated_at`

func scanOrder(row pgx.Row) (*settlement.Order, error) {
	var order settlement.Order
	err := row.Scan(
		&order.ID,
		&order.PostID,
		&order.BidID,
		&order.TransactionID,
		&order.ReceivedByBorrower,
		&order.ReceivedByLender,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveOrder inserts an order within the provided transaction. The unique
// constraints on post_id and bid_id make a duplicate insert fail.
func (r *PostgresOrderRepository) SaveOrder(ctx context.Context, tx pgx.Tx, order *settlement.Order) error {
	query := `
		INSERT INTO orders (id, post_id, bid_id, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		order.ID,
		order.PostID,
		order.BidID,
		order.TransactionID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order by its ID
func (r *PostgresOrderRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*settlement.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("order not found")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// GetOrderByBidID returns nil without error when the bid has no order
func (r *PostgresOrderRepository) GetOrderByBidID(ctx context.Context, bidID uuid.UUID) (*settlement.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE bid_id = $1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, bidID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order by bid: %w", err)
	}
	return order, nil
}

// OrderExistsForBid reports whether the bid has settled into an order.
// Runs inside the caller's transaction so deletion guards see in-flight
// settlements.
func (r *PostgresOrderRepository) OrderExistsForBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE bid_id = $1)`, bidID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check order existence: %w", err)
	}
	return exists, nil
}

// MarkReceived stamps received_by_borrower or received_by_lender
func (r *PostgresOrderRepository) MarkReceived(ctx context.Context, orderID uuid.UUID, role settlement.ReceiptRole) error {
	var column string
	switch role {
	case settlement.ReceiptRoleBorrower:
		column = "received_by_borrower"
	case settlement.ReceiptRoleLender:
		column = "received_by_lender"
	default:
		return fmt.Errorf("unknown receipt role %q", role)
	}

	query := fmt.Sprintf(`UPDATE orders SET %s = NOW(), updated_at = NOW() WHERE id = $1`, column)
	result, err := r.pool.Exec(ctx, query, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order received: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("order not found")
	}
	return nil
}

// SaveTransaction inserts a captured charge record within the provided
// transaction
func (r *PostgresOrderRepository) SaveTransaction(ctx context.Context, tx pgx.Tx, transaction *settlement.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.Exec(ctx, query,
		transaction.ID,
		transaction.UserID,
		transaction.Amount,
		transaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}
