package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BidDocument is the projection served to live clients. Derived, never
// authoritative: the ledger can always rebuild it.
type BidDocument struct {
	BidID      uuid.UUID
	PostID     uuid.UUID
	UserID     uuid.UUID
	Amount     int64
	Status     string
	UserName   string
	UserAvatar string
	CreatedAt  time.Time
}

func bidKey(postID, userID uuid.UUID) string {
	return fmt.Sprintf("post:%s:bids:%s", postID, userID)
}

func lowestBidKey(postID uuid.UUID) string {
	return fmt.Sprintf("post:%s:bids:lowest_bid", postID)
}

// Store is the Redis-backed document mirror. Each mutation is applied in a
// single MULTI/EXEC so the bid entry and the lowest_bid pointer can never
// be observed out of step. Writes are idempotent upserts keyed by ledger
// ids, so at-least-once replays are safe.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a mirror store over a shared long-lived Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// UpsertBid writes the bid entry and, when newLowest is set, rewrites the
// lowest_bid pointer in the same transaction. Status-only updates pass a
// nil newLowest so the pointer stays on the actual lowest bid. HSET of
// only these fields keeps merge semantics: fields owned by other writers
// are untouched.
func (s *Store) UpsertBid(ctx context.Context, doc BidDocument, newLowest *uuid.UUID) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, bidKey(doc.PostID, doc.UserID), map[string]interface{}{
			"user_id":     doc.UserID.String(),
			"post_id":     doc.PostID.String(),
			"amount":      doc.Amount,
			"status":      doc.Status,
			"user_avatar": doc.UserAvatar,
			"user_name":   doc.UserName,
			"created_at":  doc.CreatedAt.UTC().Format(time.RFC3339),
		})
		if newLowest != nil {
			pipe.Set(ctx, lowestBidKey(doc.PostID), newLowest.String(), 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert bid document: %w", err)
	}
	return nil
}

// DeleteBid removes the bid entry and rewrites the lowest_bid pointer in
// one transaction. A nil newLowest clears the pointer entirely, so it can
// never dangle on a deleted bid.
func (s *Store) DeleteBid(ctx context.Context, postID, userID uuid.UUID, newLowest *uuid.UUID) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, bidKey(postID, userID))
		if newLowest != nil {
			pipe.Set(ctx, lowestBidKey(postID), newLowest.String(), 0)
		} else {
			pipe.Del(ctx, lowestBidKey(postID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete bid document: %w", err)
	}
	return nil
}

// MarkOrdered flags the winning bid entry as ordered so clients stop
// offering payment for it.
func (s *Store) MarkOrdered(ctx context.Context, postID, userID uuid.UUID, transactionID string) error {
	err := s.rdb.HSet(ctx, bidKey(postID, userID), map[string]interface{}{
		"transaction_id": transactionID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to mark bid ordered: %w", err)
	}
	return nil
}

// LowestBid reads the pointer; empty string means no bids remain.
func (s *Store) LowestBid(ctx context.Context, postID uuid.UUID) (string, error) {
	val, err := s.rdb.Get(ctx, lowestBidKey(postID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read lowest bid pointer: %w", err)
	}
	return val, nil
}
