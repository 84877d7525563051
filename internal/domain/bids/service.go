package bids

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/erdum/Necessi-sub000/internal/database"
	"github.com/erdum/Necessi-sub000/internal/domain/users"
	"github.com/erdum/Necessi-sub000/internal/events"
)

// Validation errors
var (
	ErrBidNotFound         = fmt.Errorf("bid not found")
	ErrPostNotFound        = fmt.Errorf("post not found")
	ErrOwnPostBid          = fmt.Errorf("cannot bid on your own post")
	ErrInvalidBidAmount    = fmt.Errorf("bid amount must be positive")
	ErrAmountExceedsBudget = fmt.Errorf("bid amount must be below the post budget")
	ErrAmountNotLower      = fmt.Errorf("bid amount must be lower than the current lowest bid")
	ErrPostAlreadyAwarded  = fmt.Errorf("another bid on this post is already accepted")
	ErrInvalidTransition   = fmt.Errorf("bid is not in a state that allows this transition")
	ErrAccessForbidden     = fmt.Errorf("forbidden: actor is neither the bidder nor the post owner")
	ErrBidHasOrder         = fmt.Errorf("bid has settled into an order and cannot be removed")
)

// validateBidAmount checks positivity and the budget ceiling.
func validateBidAmount(amount, budget int64) error {
	if amount <= 0 {
		return ErrInvalidBidAmount
	}
	if amount >= budget {
		return ErrAmountExceedsBudget
	}
	return nil
}

// validateUndercuts enforces the lowest-wins policy: a new amount must be
// strictly lower than the current lowest bid. A nil lowest means the post
// has no bids yet.
func validateUndercuts(amount int64, lowest *Bid) error {
	if lowest != nil && amount >= lowest.Amount {
		return ErrAmountNotLower
	}
	return nil
}

// SubmitBidCommand represents the command to place or refresh a bid.
type SubmitBidCommand struct {
	PostID uuid.UUID
	UserID uuid.UUID
	Amount int64
}

// AcceptBidCommand represents the command to accept a bid.
type AcceptBidCommand struct {
	BidID   uuid.UUID
	ActorID uuid.UUID
}

// RejectBidCommand represents the command to reject a bid.
type RejectBidCommand struct {
	BidID   uuid.UUID
	ActorID uuid.UUID
}

// WithdrawBidCommand represents the command to withdraw a bid.
type WithdrawBidCommand struct {
	BidID   uuid.UUID
	ActorID uuid.UUID
}

// Service implements the bid lifecycle engine. Every mutation commits the
// ledger write and its mirror-sync outbox event in one transaction.
type Service struct {
	txManager  database.TransactionManager
	bidRepo    BidRepository
	postRepo   PostRepository
	userRepo   UserRepository
	orders     OrderChecker
	outboxRepo OutboxRepository
	policy     AwardPolicy
}

// NewService creates a new bid lifecycle service.
func NewService(
	txManager database.TransactionManager,
	bidRepo BidRepository,
	postRepo PostRepository,
	userRepo UserRepository,
	orders OrderChecker,
	outboxRepo OutboxRepository,
	policy AwardPolicy,
) *Service {
	return &Service{
		txManager:  txManager,
		bidRepo:    bidRepo,
		postRepo:   postRepo,
		userRepo:   userRepo,
		orders:     orders,
		outboxRepo: outboxRepo,
		policy:     policy,
	}
}

// SubmitBid places a new bid, or refreshes the bidder's existing bid on the
// post. The post row is locked so concurrent submits serialize and the
// lowest-wins check cannot race.
func (s *Service) SubmitBid(ctx context.Context, cmd SubmitBidCommand) (*Bid, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	post, err := s.postRepo.GetPostByIDForUpdate(ctx, tx, cmd.PostID)
	if err != nil {
		return nil, ErrPostNotFound
	}

	if post.IsOwnedBy(cmd.UserID) {
		return nil, ErrOwnPostBid
	}

	if valErr := validateBidAmount(cmd.Amount, post.Budget); valErr != nil {
		return nil, valErr
	}

	lowest, err := s.bidRepo.GetLowestBidForPost(ctx, tx, cmd.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to read lowest bid: %w", err)
	}
	if valErr := validateUndercuts(cmd.Amount, lowest); valErr != nil {
		return nil, valErr
	}

	bidder, err := s.userRepo.GetUserByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("bidder not found: %w", err)
	}

	existing, err := s.bidRepo.GetBidByPostAndUser(ctx, tx, cmd.PostID, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing bid: %w", err)
	}

	now := time.Now()
	var bid *Bid
	eventType := events.EventTypeBidCreated

	if existing != nil {
		// Only a pending bid may be refreshed. An accepted bid keeps its
		// state until the owner or a sweep transitions it; resubmitting
		// must never demote it back to pending.
		if existing.Status != BidStatusPending {
			return nil, ErrInvalidTransition
		}
		// One current bid per (post, user): refresh it in place.
		existing.Amount = cmd.Amount
		existing.Status = BidStatusPending
		existing.UpdatedAt = now
		if updErr := s.bidRepo.UpdateBid(ctx, tx, existing); updErr != nil {
			return nil, fmt.Errorf("failed to update bid: %w", updErr)
		}
		bid = existing
		eventType = events.EventTypeBidUpdated
	} else {
		bid = &Bid{
			ID:        uuid.New(),
			PostID:    cmd.PostID,
			UserID:    cmd.UserID,
			Amount:    cmd.Amount,
			Status:    BidStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if saveErr := s.bidRepo.SaveBid(ctx, tx, bid); saveErr != nil {
			return nil, fmt.Errorf("failed to save bid: %w", saveErr)
		}
	}

	// A submitted bid undercut every other bid, so it is the new lowest.
	if evErr := s.saveUpsertEvent(ctx, tx, eventType, bid, bidder, &bid.ID); evErr != nil {
		return nil, evErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return bid, nil
}

// AcceptBid transitions a pending bid to accepted. The bid and its post are
// re-read under row locks inside the transaction so two concurrent accepts
// cannot both succeed.
func (s *Service) AcceptBid(ctx context.Context, cmd AcceptBidCommand) (*Bid, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	bid, err := s.bidRepo.GetBidByIDForUpdate(ctx, tx, cmd.BidID)
	if err != nil {
		return nil, ErrBidNotFound
	}

	post, err := s.postRepo.GetPostByIDForUpdate(ctx, tx, bid.PostID)
	if err != nil {
		return nil, ErrPostNotFound
	}

	if !post.IsOwnedBy(cmd.ActorID) {
		return nil, ErrAccessForbidden
	}

	if bid.Status == BidStatusAccepted {
		// Accepting an already-accepted bid is a no-op.
		return bid, nil
	}
	if bid.Status != BidStatusPending {
		return nil, ErrInvalidTransition
	}

	accepted, err := s.bidRepo.CountAcceptedForPost(ctx, tx, bid.PostID, bid.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count accepted bids: %w", err)
	}
	if accepted > 0 {
		if s.policy == AwardPolicySingle {
			return nil, ErrPostAlreadyAwarded
		}
	}

	bidder, err := s.userRepo.GetUserByID(ctx, bid.UserID)
	if err != nil {
		return nil, fmt.Errorf("bidder not found: %w", err)
	}

	bid.Status = BidStatusAccepted
	bid.UpdatedAt = time.Now()
	if updErr := s.bidRepo.UpdateBid(ctx, tx, bid); updErr != nil {
		return nil, fmt.Errorf("failed to update bid: %w", updErr)
	}

	if evErr := s.saveUpsertEvent(ctx, tx, events.EventTypeBidUpdated, bid, bidder, nil); evErr != nil {
		return nil, evErr
	}

	if s.policy == AwardPolicyCascade {
		rejected, rejErr := s.bidRepo.RejectPendingSiblings(ctx, tx, bid.PostID, bid.ID)
		if rejErr != nil {
			return nil, fmt.Errorf("failed to reject sibling bids: %w", rejErr)
		}
		for _, siblingID := range rejected {
			sibling, getErr := s.bidRepo.GetBidByIDForUpdate(ctx, tx, siblingID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load rejected sibling: %w", getErr)
			}
			siblingBidder, userErr := s.userRepo.GetUserByID(ctx, sibling.UserID)
			if userErr != nil {
				return nil, fmt.Errorf("sibling bidder not found: %w", userErr)
			}
			if evErr := s.saveUpsertEvent(ctx, tx, events.EventTypeBidUpdated, sibling, siblingBidder, nil); evErr != nil {
				return nil, evErr
			}
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return bid, nil
}

// RejectBid transitions a pending bid to rejected.
func (s *Service) RejectBid(ctx context.Context, cmd RejectBidCommand) (*Bid, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	bid, err := s.bidRepo.GetBidByIDForUpdate(ctx, tx, cmd.BidID)
	if err != nil {
		return nil, ErrBidNotFound
	}

	post, err := s.postRepo.GetPostByIDForUpdate(ctx, tx, bid.PostID)
	if err != nil {
		return nil, ErrPostNotFound
	}
	if !post.IsOwnedBy(cmd.ActorID) {
		return nil, ErrAccessForbidden
	}

	if bid.Status != BidStatusPending {
		return nil, ErrInvalidTransition
	}

	bidder, err := s.userRepo.GetUserByID(ctx, bid.UserID)
	if err != nil {
		return nil, fmt.Errorf("bidder not found: %w", err)
	}

	bid.Status = BidStatusRejected
	bid.UpdatedAt = time.Now()
	if updErr := s.bidRepo.UpdateBid(ctx, tx, bid); updErr != nil {
		return nil, fmt.Errorf("failed to update bid: %w", updErr)
	}

	if evErr := s.saveUpsertEvent(ctx, tx, events.EventTypeBidUpdated, bid, bidder, nil); evErr != nil {
		return nil, evErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return bid, nil
}

// WithdrawBid deletes a bid on behalf of the bidder or the post owner and
// recomputes the post's lowest-bid pointer for the mirror.
func (s *Service) WithdrawBid(ctx context.Context, cmd WithdrawBidCommand) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	bid, err := s.bidRepo.GetBidByIDForUpdate(ctx, tx, cmd.BidID)
	if err != nil {
		return ErrBidNotFound
	}

	post, err := s.postRepo.GetPostByIDForUpdate(ctx, tx, bid.PostID)
	if err != nil {
		return ErrPostNotFound
	}

	if bid.UserID != cmd.ActorID && !post.IsOwnedBy(cmd.ActorID) {
		return ErrAccessForbidden
	}

	hasOrder, err := s.orders.OrderExistsForBid(ctx, tx, bid.ID)
	if err != nil {
		return fmt.Errorf("failed to check for order: %w", err)
	}
	if hasOrder {
		return ErrBidHasOrder
	}

	if err := s.deleteBid(ctx, tx, bid); err != nil {
		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return nil
}

// ExpireBid removes a stale accepted bid on behalf of the settlement sweep.
// A bid that already settled into an order is never expired.
func (s *Service) ExpireBid(ctx context.Context, bidID uuid.UUID) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	bid, err := s.bidRepo.GetBidByIDForUpdate(ctx, tx, bidID)
	if err != nil {
		return ErrBidNotFound
	}

	if bid.Status != BidStatusAccepted {
		return ErrInvalidTransition
	}

	hasOrder, err := s.orders.OrderExistsForBid(ctx, tx, bid.ID)
	if err != nil {
		return fmt.Errorf("failed to check for order: %w", err)
	}
	if hasOrder {
		return ErrBidHasOrder
	}

	if err := s.deleteBid(ctx, tx, bid); err != nil {
		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return nil
}

// GetPostBids returns all bids on a post together with the current lowest
// bid id, the same view the mirror serves.
func (s *Service) GetPostBids(ctx context.Context, postID uuid.UUID) ([]*Bid, *uuid.UUID, error) {
	list, err := s.bidRepo.GetBidsByPostID(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list bids: %w", err)
	}
	var lowest *uuid.UUID
	if len(list) > 0 {
		lowest = &list[0].ID
	}
	return list, lowest, nil
}

// deleteBid removes the row, recomputes the next-lowest bid inside the same
// transaction and stages the bid.deleted event.
func (s *Service) deleteBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	if err := s.bidRepo.DeleteBid(ctx, tx, bid.ID); err != nil {
		return fmt.Errorf("failed to delete bid: %w", err)
	}

	nextLowest, err := s.bidRepo.GetLowestBidForPost(ctx, tx, bid.PostID)
	if err != nil {
		return fmt.Errorf("failed to find next lowest bid: %w", err)
	}

	payload := events.BidDeleted{
		BidID:  bid.ID,
		PostID: bid.PostID,
		UserID: bid.UserID,
	}
	if nextLowest != nil {
		payload.LowestBidID = &nextLowest.ID
	}

	event, err := events.NewOutboxEvent(events.EventTypeBidDeleted, payload)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

// saveUpsertEvent stages a bid.created or bid.updated outbox event.
// lowestBidID is set only when the mutation changed which bid is lowest;
// status-only updates pass nil so the mirror leaves its pointer alone.
func (s *Service) saveUpsertEvent(ctx context.Context, tx pgx.Tx, eventType events.EventType, bid *Bid, bidder *users.User, lowestBidID *uuid.UUID) error {
	payload := events.BidUpserted{
		BidID:       bid.ID,
		PostID:      bid.PostID,
		UserID:      bid.UserID,
		Amount:      bid.Amount,
		Status:      string(bid.Status),
		UserName:    bidder.DisplayName,
		UserAvatar:  bidder.AvatarURL,
		CreatedAt:   bid.CreatedAt,
		LowestBidID: lowestBidID,
	}
	event, err := events.NewOutboxEvent(eventType, payload)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
