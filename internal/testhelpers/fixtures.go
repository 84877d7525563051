package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedUser inserts a user row and returns its id.
func SeedUser(t *testing.T, pool *pgxpool.Pool, email, displayName string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, email, display_name, avatar_url)
		VALUES ($1, $2, $3, '')
	`, id, email, displayName)
	if err != nil {
		t.Fatalf("failed to seed user: %s", err)
	}
	return id
}

// SeedPost inserts a post owned by ownerID with the given budget and a
// one-week lending window starting tomorrow.
func SeedPost(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID, title string, budget int64) uuid.UUID {
	t.Helper()
	start := time.Now().Add(24 * time.Hour)
	return SeedPostWindow(t, pool, ownerID, title, budget, start, start.Add(7*24*time.Hour))
}

// SeedPostWindow inserts a post with an explicit lending window, so tests
// can place start or end dates in the past.
func SeedPostWindow(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID, title string, budget int64, start, end time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO posts (id, user_id, title, type, budget, start_date, end_date)
		VALUES ($1, $2, $3, 'item', $4, $5, $6)
	`, id, ownerID, title, budget, start, end)
	if err != nil {
		t.Fatalf("failed to seed post: %s", err)
	}
	return id
}

// SeedBid inserts a bid row directly, bypassing the lifecycle engine.
func SeedBid(t *testing.T, pool *pgxpool.Pool, postID, userID uuid.UUID, amount int64, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO bids (id, post_id, user_id, amount, status)
		VALUES ($1, $2, $3, $4, $5::bid_status)
	`, id, postID, userID, amount, status)
	if err != nil {
		t.Fatalf("failed to seed bid: %s", err)
	}
	return id
}

// SeedTransaction inserts a ledger transaction with a gateway-issued id.
func SeedTransaction(t *testing.T, pool *pgxpool.Pool, id string, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO transactions (id, user_id, amount)
		VALUES ($1, $2, $3)
	`, id, userID, amount)
	if err != nil {
		t.Fatalf("failed to seed transaction: %s", err)
	}
}

// SeedOrder inserts a paid order for the given bid.
func SeedOrder(t *testing.T, pool *pgxpool.Pool, postID, bidID uuid.UUID, transactionID string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO orders (id, post_id, bid_id, transaction_id)
		VALUES ($1, $2, $3, $4)
	`, id, postID, bidID, transactionID)
	if err != nil {
		t.Fatalf("failed to seed order: %s", err)
	}
	return id
}
