package bids

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/erdum/Necessi-sub000/internal/domain/posts"
	"github.com/erdum/Necessi-sub000/internal/domain/users"
	"github.com/erdum/Necessi-sub000/internal/events"
)

// stubTx satisfies pgx.Tx for unit tests. Only Commit and Rollback are
// called by the service; everything else panics via the embedded nil.
type stubTx struct {
	pgx.Tx
	commitErr error
}

func (s *stubTx) Commit(ctx context.Context) error   { return s.commitErr }
func (s *stubTx) Rollback(ctx context.Context) error { return nil }

type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) UpdateBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) DeleteBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error {
	args := m.Called(ctx, tx, bidID)
	return args.Error(0)
}

func (m *MockBidRepository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) GetBidByIDForUpdate(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, tx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) GetBidByPostAndUser(ctx context.Context, tx pgx.Tx, postID, userID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, tx, postID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) GetLowestBidForPost(ctx context.Context, tx pgx.Tx, postID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, tx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) CountAcceptedForPost(ctx context.Context, tx pgx.Tx, postID, excludeBidID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tx, postID, excludeBidID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBidRepository) RejectPendingSiblings(ctx context.Context, tx pgx.Tx, postID, winnerBidID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tx, postID, winnerBidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockBidRepository) GetBidsByPostID(ctx context.Context, postID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) GetPostByIDForUpdate(ctx context.Context, tx pgx.Tx, postID uuid.UUID) (*posts.Post, error) {
	args := m.Called(ctx, tx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*posts.Post), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

type MockOrderChecker struct {
	mock.Mock
}

func (m *MockOrderChecker) OrderExistsForBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, bidID)
	return args.Bool(0), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

type serviceMocks struct {
	txManager  *MockTxManager
	bidRepo    *MockBidRepository
	postRepo   *MockPostRepository
	userRepo   *MockUserRepository
	orders     *MockOrderChecker
	outboxRepo *MockOutboxRepository
}

func newServiceWithMocks(policy AwardPolicy) (*Service, *serviceMocks) {
	m := &serviceMocks{
		txManager:  new(MockTxManager),
		bidRepo:    new(MockBidRepository),
		postRepo:   new(MockPostRepository),
		userRepo:   new(MockUserRepository),
		orders:     new(MockOrderChecker),
		outboxRepo: new(MockOutboxRepository),
	}
	svc := NewService(m.txManager, m.bidRepo, m.postRepo, m.userRepo, m.orders, m.outboxRepo, policy)
	return svc, m
}

func (m *serviceMocks) assertExpectations(t *testing.T) {
	m.txManager.AssertExpectations(t)
	m.bidRepo.AssertExpectations(t)
	m.postRepo.AssertExpectations(t)
	m.userRepo.AssertExpectations(t)
	m.orders.AssertExpectations(t)
	m.outboxRepo.AssertExpectations(t)
}

func TestValidateBidAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		budget  int64
		wantErr error
	}{
		{name: "valid amount", amount: 50, budget: 100, wantErr: nil},
		{name: "zero amount", amount: 0, budget: 100, wantErr: ErrInvalidBidAmount},
		{name: "negative amount", amount: -10, budget: 100, wantErr: ErrInvalidBidAmount},
		{name: "amount equal to budget", amount: 100, budget: 100, wantErr: ErrAmountExceedsBudget},
		{name: "amount above budget", amount: 150, budget: 100, wantErr: ErrAmountExceedsBudget},
		{name: "one below budget", amount: 99, budget: 100, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBidAmount(tt.amount, tt.budget)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUndercuts(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		lowest  *Bid
		wantErr error
	}{
		{name: "no bids yet", amount: 50, lowest: nil, wantErr: nil},
		{name: "undercuts lowest", amount: 40, lowest: &Bid{Amount: 50}, wantErr: nil},
		{name: "equal to lowest", amount: 50, lowest: &Bid{Amount: 50}, wantErr: ErrAmountNotLower},
		{name: "above lowest", amount: 60, lowest: &Bid{Amount: 50}, wantErr: ErrAmountNotLower},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateUndercuts(tt.amount, tt.lowest)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_SubmitBid(t *testing.T) {
	postID := uuid.New()
	ownerID := uuid.New()
	bidderID := uuid.New()

	post := &posts.Post{ID: postID, UserID: ownerID, Title: "Ladder", Budget: 100}
	bidder := &users.User{ID: bidderID, DisplayName: "Sam", AvatarURL: "a.png"}

	tests := []struct {
		name      string
		cmd       SubmitBidCommand
		setupMock func(*serviceMocks, pgx.Tx)
		wantErr   error
	}{
		{
			name: "successfully places first bid",
			cmd:  SubmitBidCommand{PostID: postID, UserID: bidderID, Amount: 50},
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.bidRepo.On("GetLowestBidForPost", mock.Anything, tx, postID).Return(nil, nil)
				m.userRepo.On("GetUserByID", mock.Anything, bidderID).Return(bidder, nil)
				m.bidRepo.On("GetBidByPostAndUser", mock.Anything, tx, postID, bidderID).Return(nil, nil)
				m.bidRepo.On("SaveBid", mock.Anything, tx, mock.AnythingOfType("*bids.Bid")).Return(nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
		},
		{
			name: "refreshes existing bid in place",
			cmd:  SubmitBidCommand{PostID: postID, UserID: bidderID, Amount: 40},
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				existing := &Bid{ID: uuid.New(), PostID: postID, UserID: bidderID, Amount: 60, Status: BidStatusPending}
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.bidRepo.On("GetLowestBidForPost", mock.Anything, tx, postID).Return(&Bid{Amount: 50}, nil)
				m.userRepo.On("GetUserByID", mock.Anything, bidderID).Return(bidder, nil)
				m.bidRepo.On("GetBidByPostAndUser", mock.Anything, tx, postID, bidderID).Return(existing, nil)
				m.bidRepo.On("UpdateBid", mock.Anything, tx, existing).Return(nil)
				// The refreshed bid undercut everything, so the staged event
				// repoints the mirror's lowest_bid at it.
				m.outboxRepo.On("SaveEvent", mock.Anything, tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
					payload, err := events.Unmarshal[events.BidUpserted](e.Payload)
					return err == nil && payload.LowestBidID != nil && *payload.LowestBidID == existing.ID
				})).Return(nil)
			},
		},
		{
			name: "refuses to demote an accepted bid on resubmit",
			cmd:  SubmitBidCommand{PostID: postID, UserID: bidderID, Amount: 40},
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				accepted := &Bid{ID: uuid.New(), PostID: postID, UserID: bidderID, Amount: 60, Status: BidStatusAccepted}
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.bidRepo.On("GetLowestBidForPost", mock.Anything, tx, postID).Return(&Bid{Amount: 50}, nil)
				m.userRepo.On("GetUserByID", mock.Anything, bidderID).Return(bidder, nil)
				m.bidRepo.On("GetBidByPostAndUser", mock.Anything, tx, postID, bidderID).Return(accepted, nil)
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "fails when bidding on own post",
			cmd:  SubmitBidCommand{PostID: postID, UserID: ownerID, Amount: 50},
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
			},
			wantErr: ErrOwnPostBid,
		},
		{
			name: "fails when amount reaches the budget",
			cmd:  SubmitBidCommand{PostID: postID, UserID: bidderID, Amount: 100},
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
			},
			wantErr: ErrAmountExceedsBudget,
		},
		{
			name: "fails when amount does not undercut the lowest bid",
			cmd:  SubmitBidCommand{PostID: postID, UserID: bidderID, Amount: 60},
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.bidRepo.On("GetLowestBidForPost", mock.Anything, tx, postID).Return(&Bid{Amount: 50}, nil)
			},
			wantErr: ErrAmountNotLower,
		},
		{
			name: "fails when post not found",
			cmd:  SubmitBidCommand{PostID: postID, UserID: bidderID, Amount: 50},
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(nil, errors.New("not found"))
			},
			wantErr: ErrPostNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newServiceWithMocks(AwardPolicySingle)
			tx := &stubTx{}
			m.txManager.On("BeginTx", mock.Anything).Return(tx, nil)
			tt.setupMock(m, tx)

			bid, err := svc.SubmitBid(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, bid)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, bid)
				assert.Equal(t, tt.cmd.Amount, bid.Amount)
				assert.Equal(t, BidStatusPending, bid.Status)
			}

			m.assertExpectations(t)
		})
	}
}

func TestService_AcceptBid(t *testing.T) {
	postID := uuid.New()
	ownerID := uuid.New()
	bidderID := uuid.New()
	bidID := uuid.New()

	post := &posts.Post{ID: postID, UserID: ownerID, Budget: 100}
	bidder := &users.User{ID: bidderID, DisplayName: "Sam"}

	newPendingBid := func() *Bid {
		return &Bid{ID: bidID, PostID: postID, UserID: bidderID, Amount: 50, Status: BidStatusPending}
	}

	tests := []struct {
		name      string
		policy    AwardPolicy
		actorID   uuid.UUID
		setupMock func(*serviceMocks, pgx.Tx)
		wantErr   error
	}{
		{
			name:    "owner accepts pending bid",
			policy:  AwardPolicySingle,
			actorID: ownerID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(newPendingBid(), nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.bidRepo.On("CountAcceptedForPost", mock.Anything, tx, postID, bidID).Return(int64(0), nil)
				m.userRepo.On("GetUserByID", mock.Anything, bidderID).Return(bidder, nil)
				m.bidRepo.On("UpdateBid", mock.Anything, tx, mock.AnythingOfType("*bids.Bid")).Return(nil)
				// A status change never moves the lowest_bid pointer.
				m.outboxRepo.On("SaveEvent", mock.Anything, tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
					payload, err := events.Unmarshal[events.BidUpserted](e.Payload)
					return err == nil && payload.LowestBidID == nil
				})).Return(nil)
			},
		},
		{
			name:    "accept is idempotent for an already accepted bid",
			policy:  AwardPolicySingle,
			actorID: ownerID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				accepted := newPendingBid()
				accepted.Status = BidStatusAccepted
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(accepted, nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
			},
		},
		{
			name:    "fails when actor is not the post owner",
			policy:  AwardPolicySingle,
			actorID: bidderID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(newPendingBid(), nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
			},
			wantErr: ErrAccessForbidden,
		},
		{
			name:    "fails when another bid is already accepted under single policy",
			policy:  AwardPolicySingle,
			actorID: ownerID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(newPendingBid(), nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.bidRepo.On("CountAcceptedForPost", mock.Anything, tx, postID, bidID).Return(int64(1), nil)
			},
			wantErr: ErrPostAlreadyAwarded,
		},
		{
			name:    "fails when bid is rejected",
			policy:  AwardPolicySingle,
			actorID: ownerID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				rejected := newPendingBid()
				rejected.Status = BidStatusRejected
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(rejected, nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "cascade policy rejects pending siblings",
			policy:  AwardPolicyCascade,
			actorID: ownerID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				siblingID := uuid.New()
				sibling := &Bid{ID: siblingID, PostID: postID, UserID: uuid.New(), Amount: 70, Status: BidStatusRejected}
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(newPendingBid(), nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.bidRepo.On("CountAcceptedForPost", mock.Anything, tx, postID, bidID).Return(int64(0), nil)
				m.userRepo.On("GetUserByID", mock.Anything, bidderID).Return(bidder, nil)
				m.bidRepo.On("UpdateBid", mock.Anything, tx, mock.AnythingOfType("*bids.Bid")).Return(nil)
				m.bidRepo.On("RejectPendingSiblings", mock.Anything, tx, postID, bidID).Return([]uuid.UUID{siblingID}, nil)
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, siblingID).Return(sibling, nil)
				m.userRepo.On("GetUserByID", mock.Anything, sibling.UserID).Return(&users.User{ID: sibling.UserID}, nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newServiceWithMocks(tt.policy)
			tx := &stubTx{}
			m.txManager.On("BeginTx", mock.Anything).Return(tx, nil)
			tt.setupMock(m, tx)

			bid, err := svc.AcceptBid(context.Background(), AcceptBidCommand{BidID: bidID, ActorID: tt.actorID})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, bid)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, bid)
				assert.Equal(t, BidStatusAccepted, bid.Status)
			}

			m.assertExpectations(t)
		})
	}
}

func TestService_WithdrawBid(t *testing.T) {
	postID := uuid.New()
	ownerID := uuid.New()
	bidderID := uuid.New()
	bidID := uuid.New()
	strangerID := uuid.New()

	post := &posts.Post{ID: postID, UserID: ownerID, Budget: 100}
	bid := &Bid{ID: bidID, PostID: postID, UserID: bidderID, Amount: 50, Status: BidStatusPending}

	tests := []struct {
		name      string
		actorID   uuid.UUID
		setupMock func(*serviceMocks, pgx.Tx)
		wantErr   error
	}{
		{
			name:    "bidder withdraws own bid and next lowest is recomputed",
			actorID: bidderID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				next := &Bid{ID: uuid.New(), PostID: postID, Amount: 60}
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(bid, nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.orders.On("OrderExistsForBid", mock.Anything, tx, bidID).Return(false, nil)
				m.bidRepo.On("DeleteBid", mock.Anything, tx, bidID).Return(nil)
				m.bidRepo.On("GetLowestBidForPost", mock.Anything, tx, postID).Return(next, nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
					return e.EventType == events.EventTypeBidDeleted
				})).Return(nil)
			},
		},
		{
			name:    "post owner can remove a bid",
			actorID: ownerID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(bid, nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.orders.On("OrderExistsForBid", mock.Anything, tx, bidID).Return(false, nil)
				m.bidRepo.On("DeleteBid", mock.Anything, tx, bidID).Return(nil)
				m.bidRepo.On("GetLowestBidForPost", mock.Anything, tx, postID).Return(nil, nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
		},
		{
			name:    "fails for an unrelated actor",
			actorID: strangerID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(bid, nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
			},
			wantErr: ErrAccessForbidden,
		},
		{
			name:    "fails when the bid settled into an order",
			actorID: bidderID,
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(bid, nil)
				m.postRepo.On("GetPostByIDForUpdate", mock.Anything, tx, postID).Return(post, nil)
				m.orders.On("OrderExistsForBid", mock.Anything, tx, bidID).Return(true, nil)
			},
			wantErr: ErrBidHasOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newServiceWithMocks(AwardPolicySingle)
			tx := &stubTx{}
			m.txManager.On("BeginTx", mock.Anything).Return(tx, nil)
			tt.setupMock(m, tx)

			err := svc.WithdrawBid(context.Background(), WithdrawBidCommand{BidID: bidID, ActorID: tt.actorID})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			m.assertExpectations(t)
		})
	}
}

func TestService_ExpireBid(t *testing.T) {
	postID := uuid.New()
	bidderID := uuid.New()
	bidID := uuid.New()

	acceptedBid := func() *Bid {
		return &Bid{ID: bidID, PostID: postID, UserID: bidderID, Amount: 50, Status: BidStatusAccepted, UpdatedAt: time.Now().Add(-48 * time.Hour)}
	}

	tests := []struct {
		name      string
		setupMock func(*serviceMocks, pgx.Tx)
		wantErr   error
	}{
		{
			name: "expires stale accepted bid without order",
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(acceptedBid(), nil)
				m.orders.On("OrderExistsForBid", mock.Anything, tx, bidID).Return(false, nil)
				m.bidRepo.On("DeleteBid", mock.Anything, tx, bidID).Return(nil)
				m.bidRepo.On("GetLowestBidForPost", mock.Anything, tx, postID).Return(nil, nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
		},
		{
			name: "refuses to expire a bid with an order",
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(acceptedBid(), nil)
				m.orders.On("OrderExistsForBid", mock.Anything, tx, bidID).Return(true, nil)
			},
			wantErr: ErrBidHasOrder,
		},
		{
			name: "refuses to expire a pending bid",
			setupMock: func(m *serviceMocks, tx pgx.Tx) {
				pending := acceptedBid()
				pending.Status = BidStatusPending
				m.bidRepo.On("GetBidByIDForUpdate", mock.Anything, tx, bidID).Return(pending, nil)
			},
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newServiceWithMocks(AwardPolicySingle)
			tx := &stubTx{}
			m.txManager.On("BeginTx", mock.Anything).Return(tx, nil)
			tt.setupMock(m, tx)

			err := svc.ExpireBid(context.Background(), bidID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			m.assertExpectations(t)
		})
	}
}
