package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/erdum/Necessi-sub000/internal/database"
	"github.com/erdum/Necessi-sub000/internal/domain/bids"
	"github.com/erdum/Necessi-sub000/internal/domain/users"
	"github.com/erdum/Necessi-sub000/internal/events"
)

// Gateway errors. ErrCardDeclined maps to the user-facing "Transaction
// failed" message; ErrGateway covers every other processor failure.
var (
	ErrCardDeclined = fmt.Errorf("card declined")
	ErrGateway      = fmt.Errorf("payment gateway error")
)

// Domain validation errors
var (
	ErrBidNotFound            = fmt.Errorf("bid not found")
	ErrBidNotAccepted         = fmt.Errorf("bid is not accepted")
	ErrNotPayer               = fmt.Errorf("only the post owner can pay for this bid")
	ErrAlreadyPaid            = fmt.Errorf("bid already has an order")
	ErrOrderNotFound          = fmt.Errorf("order not found")
	ErrPaymentNotCaptured     = fmt.Errorf("order has no captured payment")
	ErrMissingIdempotencyKey  = fmt.Errorf("idempotency key is required")
	ErrPayoutsNotEnabled      = fmt.Errorf("user has no verified bank account for payouts")
	ErrUnknownGatewayAccount  = fmt.Errorf("no user for gateway account")
	ErrReceiptAccessForbidden = fmt.Errorf("actor cannot confirm receipt for this order")
)

// CapturePaymentCommand represents the command to charge an accepted bid.
type CapturePaymentCommand struct {
	BidID           uuid.UUID
	PayerID         uuid.UUID
	PaymentMethodID string
	IdempotencyKey  string
}

// ConfirmReceiptCommand represents a party confirming pickup or return.
type ConfirmReceiptCommand struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Role    ReceiptRole
}

// WithdrawalCommand represents an approved withdrawal to be paid out.
type WithdrawalCommand struct {
	UserID uuid.UUID
	Amount int64
}

// Service orchestrates payment capture and order settlement. A successful
// charge is always paired with exactly one Transaction and one Order, or
// compensated with a refund.
type Service struct {
	txManager       database.TransactionManager
	bidRepo         BidReader
	postRepo        PostReader
	userRepo        UserRepository
	orderRepo       OrderRepository
	transactionRepo TransactionRepository
	outboxRepo      OutboxRepository
	gateway         Gateway
	gatewayTimeout  time.Duration
	logger          *slog.Logger
}

// NewService creates a new settlement service.
func NewService(
	txManager database.TransactionManager,
	bidRepo BidReader,
	postRepo PostReader,
	userRepo UserRepository,
	orderRepo OrderRepository,
	transactionRepo TransactionRepository,
	outboxRepo OutboxRepository,
	gateway Gateway,
	gatewayTimeout time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager:       txManager,
		bidRepo:         bidRepo,
		postRepo:        postRepo,
		userRepo:        userRepo,
		orderRepo:       orderRepo,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		gateway:         gateway,
		gatewayTimeout:  gatewayTimeout,
		logger:          logger,
	}
}

// CapturePayment charges the accepted bid and records the Transaction and
// Order in one ledger transaction. The gateway call happens outside any
// held row lock; if the ledger write fails after a successful charge, the
// charge is refunded so no money leaks.
func (s *Service) CapturePayment(ctx context.Context, cmd CapturePaymentCommand) (*Receipt, error) {
	if cmd.IdempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}

	bid, err := s.bidRepo.GetBidByID(ctx, cmd.BidID)
	if err != nil {
		return nil, ErrBidNotFound
	}
	if bid.Status != bids.BidStatusAccepted {
		return nil, ErrBidNotAccepted
	}

	post, err := s.postRepo.GetPostByID(ctx, bid.PostID)
	if err != nil {
		return nil, fmt.Errorf("post not found: %w", err)
	}
	// The post owner requested the item/service and pays the winning bid.
	if post.UserID != cmd.PayerID {
		return nil, ErrNotPayer
	}

	existing, err := s.orderRepo.GetOrderByBidID(ctx, bid.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing order: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyPaid
	}

	payer, err := s.userRepo.GetUserByID(ctx, cmd.PayerID)
	if err != nil {
		return nil, fmt.Errorf("payer not found: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, payer)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	receipt, err := s.gateway.Charge(gctx, ChargeParams{
		CustomerID:      customerID,
		PaymentMethodID: cmd.PaymentMethodID,
		Amount:          bid.Amount * 100, // minor currency units
		IdempotencyKey:  cmd.IdempotencyKey,
		Description:     post.Title,
	})
	if err != nil {
		return nil, err
	}

	if err := s.recordSettlement(ctx, bid, payer.ID, receipt); err != nil {
		// The charge succeeded but the ledger write did not: compensate.
		refundID, refundErr := s.gateway.Refund(ctx, receipt.ChargeID)
		if refundErr != nil {
			s.logger.Error("compensating refund failed, charge is unreconciled",
				"charge_id", receipt.ChargeID, "bid_id", bid.ID, "error", refundErr)
			return nil, errors.Join(err, refundErr)
		}
		s.logger.Warn("settlement write failed, charge refunded",
			"charge_id", receipt.ChargeID, "refund_id", refundID, "bid_id", bid.ID, "error", err)
		return nil, err
	}

	return receipt, nil
}

// recordSettlement commits the Transaction row, the Order row and the
// order.created event atomically.
func (s *Service) recordSettlement(ctx context.Context, bid *bids.Bid, payerID uuid.UUID, receipt *Receipt) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now()
	transaction := &Transaction{
		ID:        receipt.ChargeID,
		UserID:    payerID,
		Amount:    bid.Amount,
		CreatedAt: now,
	}
	if err := s.transactionRepo.SaveTransaction(ctx, tx, transaction); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	order := &Order{
		ID:            uuid.New(),
		PostID:        bid.PostID,
		BidID:         bid.ID,
		TransactionID: &transaction.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orderRepo.SaveOrder(ctx, tx, order); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	event, err := events.NewOutboxEvent(events.EventTypeOrderCreated, events.OrderCreated{
		OrderID:       order.ID,
		PostID:        order.PostID,
		BidID:         order.BidID,
		UserID:        bid.UserID,
		TransactionID: transaction.ID,
		CreatedAt:     now,
	})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return nil
}

func (s *Service) ensureCustomer(ctx context.Context, payer *users.User) (string, error) {
	if payer.CustomerID != nil && *payer.CustomerID != "" {
		return *payer.CustomerID, nil
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	customerID, err := s.gateway.EnsureCustomer(gctx, payer)
	if err != nil {
		return "", err
	}

	if err := s.userRepo.SaveCustomerID(ctx, payer.ID, customerID); err != nil {
		// Cache write failure is recoverable: the lookup is by email next time.
		s.logger.Warn("failed to cache customer id", "user_id", payer.ID, "error", err)
	}
	return customerID, nil
}

// ConfirmReceipt stamps the borrower pickup or lender return timestamp on
// a paid order.
func (s *Service) ConfirmReceipt(ctx context.Context, cmd ConfirmReceiptCommand) (*Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	if order.TransactionID == nil {
		return nil, ErrPaymentNotCaptured
	}

	bid, err := s.bidRepo.GetBidByID(ctx, order.BidID)
	if err != nil {
		return nil, fmt.Errorf("bid not found for order: %w", err)
	}
	post, err := s.postRepo.GetPostByID(ctx, order.PostID)
	if err != nil {
		return nil, fmt.Errorf("post not found for order: %w", err)
	}

	switch cmd.Role {
	case ReceiptRoleBorrower:
		if post.UserID != cmd.ActorID {
			return nil, ErrReceiptAccessForbidden
		}
	case ReceiptRoleLender:
		if bid.UserID != cmd.ActorID {
			return nil, ErrReceiptAccessForbidden
		}
	default:
		return nil, fmt.Errorf("unknown receipt role %q", cmd.Role)
	}

	if err := s.orderRepo.MarkReceived(ctx, order.ID, cmd.Role); err != nil {
		return nil, fmt.Errorf("failed to mark order received: %w", err)
	}

	updated, err := s.orderRepo.GetOrderByID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	return updated, nil
}

// RegisterExternalAccount records the bank account the processor reported
// for a connected account and enables payouts for its owner.
func (s *Service) RegisterExternalAccount(ctx context.Context, gatewayAccountID, bankAccountID string) error {
	user, err := s.userRepo.GetUserByGatewayAccount(ctx, gatewayAccountID)
	if err != nil {
		return ErrUnknownGatewayAccount
	}
	if err := s.userRepo.SaveBankAccount(ctx, user.ID, bankAccountID); err != nil {
		return fmt.Errorf("failed to save bank account: %w", err)
	}
	return nil
}

// ApproveWithdrawal pays out the requested amount to the user's registered
// bank account.
func (s *Service) ApproveWithdrawal(ctx context.Context, cmd WithdrawalCommand) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, cmd.UserID)
	if err != nil {
		return "", fmt.Errorf("user not found: %w", err)
	}
	if !user.PayoutsEnabled || user.BankAccountID == nil {
		return "", ErrPayoutsNotEnabled
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	payoutID, err := s.gateway.Payout(gctx, *user.BankAccountID, cmd.Amount*100)
	if err != nil {
		return "", err
	}
	return payoutID, nil
}
