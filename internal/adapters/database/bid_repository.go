package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erdum/Necessi-sub000/internal/domain/bids"
)

// PostgresBidRepository implements bids.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid saves a bid within the provided transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, post_id, user_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::bid_status, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.PostID,
		bid.UserID,
		bid.Amount,
		bid.Status,
		bid.CreatedAt,
		bid.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// UpdateBid updates amount, status and updated_at within the provided transaction
func (r *PostgresBidRepository) UpdateBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		UPDATE bids
		SET amount = $1, status = $2::bid_status, updated_at = $3
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, bid.Amount, bid.Status, bid.UpdatedAt, bid.ID)
	if err != nil {
		return fmt.Errorf("failed to update bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bid not found")
	}
	return nil
}

// DeleteBid removes a bid within the provided transaction
func (r *PostgresBidRepository) DeleteBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error {
	result, err := tx.Exec(ctx, `DELETE FROM bids WHERE id = $1`, bidID)
	if err != nil {
		return fmt.Errorf("failed to delete bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bid not found")
	}
	return nil
}

const bidColumns = `id, post_id, user_id, amount, status, created_at, updated_at`

func scanBid(row pgx.Row) (*bids.Bid, error) {
	var bid bids.Bid
	err := row.Scan(
		&bid.ID,
		&bid.PostID,
		&bid.UserID,
		&bid.Amount,
		&bid.Status,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// GetBidByID retrieves a bid by its ID
func (r *PostgresBidRepository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`
	bid, err := scanBid(r.pool.QueryRow(ctx, query, bidID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("bid not found")
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// GetBidByIDForUpdate retrieves a bid and locks its row for the duration of
// the transaction
func (r *PostgresBidRepository) GetBidByIDForUpdate(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1 FOR UPDATE`
	bid, err := scanBid(tx.QueryRow(ctx, query, bidID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("bid not found")
		}
		return nil, fmt.Errorf("failed to get bid for update: %w", err)
	}
	return bid, nil
}

// GetBidByPostAndUser retrieves a user's current bid on a post, locking it.
// Returns nil without error when the user has no bid.
func (r *PostgresBidRepository) GetBidByPostAndUser(ctx context.Context, tx pgx.Tx, postID, userID uuid.UUID) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE post_id = $1 AND user_id = $2 FOR UPDATE`
	bid, err := scanBid(tx.QueryRow(ctx, query, postID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid by post and user: %w", err)
	}
	return bid, nil
}

// GetLowestBidForPost returns the lowest remaining bid on the post, or nil
// when the post has no bids. Runs inside the caller's transaction so a
// preceding DELETE in the same transaction is observed.
func (r *PostgresBidRepository) GetLowestBidForPost(ctx context.Context, tx pgx.Tx, postID uuid.UUID) (*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE post_id = $1
		ORDER BY amount ASC, created_at ASC
		LIMIT 1
	`
	bid, err := scanBid(tx.QueryRow(ctx, query, postID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lowest bid: %w", err)
	}
	return bid, nil
}

// CountAcceptedForPost counts accepted bids on the post excluding the given
// bid id
func (r *PostgresBidRepository) CountAcceptedForPost(ctx context.Context, tx pgx.Tx, postID, excludeBidID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM bids
		WHERE post_id = $1 AND id <> $2 AND status = 'accepted'::bid_status
	`
	var count int64
	if err := tx.QueryRow(ctx, query, postID, excludeBidID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accepted bids: %w", err)
	}
	return count, nil
}

// RejectPendingSiblings flips every pending bid on the post except the
// winner to rejected, returning the ids it touched
func (r *PostgresBidRepository) RejectPendingSiblings(ctx context.Context, tx pgx.Tx, postID, winnerBidID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		UPDATE bids
		SET status = 'rejected'::bid_status, updated_at = NOW()
		WHERE post_id = $1 AND id <> $2 AND status = 'pending'::bid_status
		RETURNING id
	`
	rows, err := tx.Query(ctx, query, postID, winnerBidID)
	if err != nil {
		return nil, fmt.Errorf("failed to reject sibling bids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan rejected bid id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rejected bids: %w", err)
	}
	return ids, nil
}

// GetBidsByPostID retrieves all bids for a post, lowest first
func (r *PostgresBidRepository) GetBidsByPostID(ctx context.Context, postID uuid.UUID) ([]*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE post_id = $1
		ORDER BY amount ASC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*bids.Bid
	for rows.Next() {
		var bid bids.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.PostID,
			&bid.UserID,
			&bid.Amount,
			&bid.Status,
			&bid.CreatedAt,
			&bid.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}
