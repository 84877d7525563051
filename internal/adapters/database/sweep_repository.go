package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erdum/Necessi-sub000/internal/jobs"
)

// PostgresSweepRepository implements jobs.SweepRepository using pgx. All
// queries are read-only candidate scans; mutations go through the bid
// lifecycle engine.
type PostgresSweepRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSweepRepository creates a new PostgreSQL sweep repository
func NewPostgresSweepRepository(pool *pgxpool.Pool) *PostgresSweepRepository {
	return &PostgresSweepRepository{pool: pool}
}

// StaleAcceptedBids returns accepted bids last touched before the cutoff
// that never settled into an order
func (r *PostgresSweepRepository) StaleAcceptedBids(ctx context.Context, cutoff time.Time) ([]jobs.StaleBid, error) {
	query := `
		SELECT b.id, b.post_id
		FROM bids b
		LEFT JOIN orders o ON o.bid_id = b.id
		WHERE b.status = 'accepted'::bid_status
		  AND b.updated_at < $1
		  AND o.id IS NULL
	`
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale bids: %w", err)
	}
	defer rows.Close()

	var stale []jobs.StaleBid
	for rows.Next() {
		var s jobs.StaleBid
		if err := rows.Scan(&s.BidID, &s.PostID); err != nil {
			return nil, fmt.Errorf("failed to scan stale bid: %w", err)
		}
		stale = append(stale, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale bids: %w", err)
	}
	return stale, nil
}

// BidsAwaitingPayment returns accepted bids with no order, joined with the
// post so the reminder can name the post and its owner
func (r *PostgresSweepRepository) BidsAwaitingPayment(ctx context.Context) ([]jobs.PaymentDue, error) {
	query := `
		SELECT b.id, b.post_id, p.user_id, p.title, b.amount
		FROM bids b
		JOIN posts p ON p.id = b.post_id
		LEFT JOIN orders o ON o.bid_id = b.id
		WHERE b.status = 'accepted'::bid_status
		  AND o.id IS NULL
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids awaiting payment: %w", err)
	}
	defer rows.Close()

	var due []jobs.PaymentDue
	for rows.Next() {
		var d jobs.PaymentDue
		if err := rows.Scan(&d.BidID, &d.PostID, &d.OwnerID, &d.PostTitle, &d.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan payment due: %w", err)
		}
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments due: %w", err)
	}
	return due, nil
}

// OrdersAwaitingPickup returns paid item orders whose post start date has
// passed and the borrower has not confirmed receipt. The borrower is the
// post owner.
func (r *PostgresSweepRepository) OrdersAwaitingPickup(ctx context.Context, now time.Time) ([]jobs.HandoverDue, error) {
	query := `
		SELECT o.id, o.bid_id, o.post_id, p.user_id, p.title
		FROM orders o
		JOIN posts p ON p.id = o.post_id
		WHERE o.transaction_id IS NOT NULL
		  AND p.type = 'item'::post_type
		  AND p.start_date <= $1
		  AND o.received_by_borrower IS NULL
	`
	return r.queryHandovers(ctx, query, now)
}

// OrdersAwaitingReturn returns paid orders whose post end date has passed
// and the lender has not confirmed the return. The lender is the winning
// bidder. Independent of the pickup query: a missing borrower confirmation
// never suppresses the return reminder.
func (r *PostgresSweepRepository) OrdersAwaitingReturn(ctx context.Context, now time.Time) ([]jobs.HandoverDue, error) {
	query := `
		SELECT o.id, o.bid_id, o.post_id, b.user_id, p.title
		FROM orders o
		JOIN posts p ON p.id = o.post_id
		JOIN bids b ON b.id = o.bid_id
		WHERE o.transaction_id IS NOT NULL
		  AND p.end_date <= $1
		  AND o.received_by_lender IS NULL
	`
	return r.queryHandovers(ctx, query, now)
}

func (r *PostgresSweepRepository) queryHandovers(ctx context.Context, query string, now time.Time) ([]jobs.HandoverDue, error) {
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query handovers: %w", err)
	}
	defer rows.Close()

	var due []jobs.HandoverDue
	for rows.Next() {
		var d jobs.HandoverDue
		if err := rows.Scan(&d.OrderID, &d.BidID, &d.PostID, &d.RecipientID, &d.PostTitle); err != nil {
			return nil, fmt.Errorf("failed to scan handover due: %w", err)
		}
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating handovers: %w", err)
	}
	return due, nil
}
