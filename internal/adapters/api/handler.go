package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erdum/Necessi-sub000/internal/domain/bids"
	"github.com/erdum/Necessi-sub000/internal/domain/settlement"
)

// Handler exposes the bid lifecycle and settlement operations over HTTP.
type Handler struct {
	bidService        *bids.Service
	settlementService *settlement.Service
	logger            *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(bidService *bids.Service, settlementService *settlement.Service, logger *slog.Logger) *Handler {
	return &Handler{
		bidService:        bidService,
		settlementService: settlementService,
		logger:            logger,
	}
}

type submitBidRequest struct {
	PostID uuid.UUID `json:"post_id" binding:"required"`
	Amount int64     `json:"amount" binding:"required"`
}

type bidResponse struct {
	BidID     uuid.UUID `json:"bid_id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

func toBidResponse(bid *bids.Bid) bidResponse {
	return bidResponse{
		BidID:     bid.ID,
		PostID:    bid.PostID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		Status:    string(bid.Status),
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: bid.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// SubmitBid handles POST /v1/bids
func (h *Handler) SubmitBid(c *gin.Context) {
	var req submitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	bid, err := h.bidService.SubmitBid(c.Request.Context(), bids.SubmitBidCommand{
		PostID: req.PostID,
		UserID: callerID(c),
		Amount: req.Amount,
	})
	if err != nil {
		h.writeBidError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBidResponse(bid))
}

// AcceptBid handles POST /v1/bids/:id/accept
func (h *Handler) AcceptBid(c *gin.Context) {
	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid id"})
		return
	}

	bid, err := h.bidService.AcceptBid(c.Request.Context(), bids.AcceptBidCommand{
		BidID:   bidID,
		ActorID: callerID(c),
	})
	if err != nil {
		h.writeBidError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBidResponse(bid))
}

// RejectBid handles POST /v1/bids/:id/reject
func (h *Handler) RejectBid(c *gin.Context) {
	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid id"})
		return
	}

	bid, err := h.bidService.RejectBid(c.Request.Context(), bids.RejectBidCommand{
		BidID:   bidID,
		ActorID: callerID(c),
	})
	if err != nil {
		h.writeBidError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBidResponse(bid))
}

// WithdrawBid handles DELETE /v1/bids/:id
func (h *Handler) WithdrawBid(c *gin.Context) {
	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid id"})
		return
	}

	err = h.bidService.WithdrawBid(c.Request.Context(), bids.WithdrawBidCommand{
		BidID:   bidID,
		ActorID: callerID(c),
	})
	if err != nil {
		h.writeBidError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetPostBids handles GET /v1/posts/:id/bids
func (h *Handler) GetPostBids(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}

	list, lowest, err := h.bidService.GetPostBids(c.Request.Context(), postID)
	if err != nil {
		h.writeBidError(c, err)
		return
	}

	resp := make([]bidResponse, 0, len(list))
	for _, bid := range list {
		resp = append(resp, toBidResponse(bid))
	}

	body := gin.H{"bids": resp}
	if lowest != nil {
		body["lowest_bid_id"] = lowest.String()
	}
	c.JSON(http.StatusOK, body)
}

type capturePaymentRequest struct {
	BidID           uuid.UUID `json:"bid_id" binding:"required"`
	PaymentMethodID string    `json:"payment_method_id" binding:"required"`
}

// CapturePayment handles POST /v1/payments/capture. The Idempotency-Key
// header scopes retries to a single charge; one is generated when the
// client does not send it.
func (h *Handler) CapturePayment(c *gin.Context) {
	var req capturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	receipt, err := h.settlementService.CapturePayment(c.Request.Context(), settlement.CapturePaymentCommand{
		BidID:           req.BidID,
		PayerID:         callerID(c),
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		h.writeSettlementError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction_id": receipt.ChargeID,
		"status":         receipt.Status,
	})
}

type confirmReceiptRequest struct {
	Role settlement.ReceiptRole `json:"role" binding:"required"`
}

// ConfirmReceipt handles POST /v1/orders/:id/receipt
func (h *Handler) ConfirmReceipt(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req confirmReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Role != settlement.ReceiptRoleBorrower && req.Role != settlement.ReceiptRoleLender {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be borrower or lender"})
		return
	}

	order, err := h.settlementService.ConfirmReceipt(c.Request.Context(), settlement.ConfirmReceiptCommand{
		OrderID: orderID,
		ActorID: callerID(c),
		Role:    req.Role,
	})
	if err != nil {
		h.writeSettlementError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":             order.ID,
		"received_by_borrower": order.ReceivedByBorrower,
		"received_by_lender":   order.ReceivedByLender,
	})
}

type withdrawalRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// RequestWithdrawal handles POST /v1/withdrawals. Pays out to the caller's
// registered bank account.
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "amount must be positive"})
		return
	}

	payoutID, err := h.settlementService.ApproveWithdrawal(c.Request.Context(), settlement.WithdrawalCommand{
		UserID: callerID(c),
		Amount: req.Amount,
	})
	if err != nil {
		h.writeSettlementError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payout_id": payoutID})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) writeBidError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bids.ErrBidNotFound), errors.Is(err, bids.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, bids.ErrOwnPostBid), errors.Is(err, bids.ErrAccessForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, bids.ErrInvalidBidAmount),
		errors.Is(err, bids.ErrAmountExceedsBudget),
		errors.Is(err, bids.ErrAmountNotLower):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, bids.ErrPostAlreadyAwarded),
		errors.Is(err, bids.ErrInvalidTransition),
		errors.Is(err, bids.ErrBidHasOrder):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("unhandled bid error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) writeSettlementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, settlement.ErrBidNotFound), errors.Is(err, settlement.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, settlement.ErrNotPayer), errors.Is(err, settlement.ErrReceiptAccessForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, settlement.ErrBidNotAccepted),
		errors.Is(err, settlement.ErrAlreadyPaid),
		errors.Is(err, settlement.ErrPaymentNotCaptured),
		errors.Is(err, settlement.ErrPayoutsNotEnabled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, settlement.ErrMissingIdempotencyKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, settlement.ErrCardDeclined), errors.Is(err, settlement.ErrGateway):
		// Processor details stay in the logs; clients get a generic failure.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
	default:
		h.logger.Error("unhandled settlement error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
