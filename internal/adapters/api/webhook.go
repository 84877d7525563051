package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/erdum/Necessi-sub000/internal/domain/settlement"
)

const externalAccountCreated = "account.external_account.created"

// WebhookHandler receives signed processor callbacks. Only the external
// bank account event mutates state; everything else is acknowledged and
// ignored so the processor stops retrying.
type WebhookHandler struct {
	settlementService *settlement.Service
	signingSecret     string
	logger            *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(settlementService *settlement.Service, signingSecret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		settlementService: settlementService,
		signingSecret:     signingSecret,
		logger:            logger,
	}
}

// HandleStripe handles POST /v1/webhooks/stripe
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 65536))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	// The fields read here are stable across API versions, so an account
	// pinned to a different version than the SDK must not be rejected.
	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.signingSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if string(event.Type) != externalAccountCreated {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	bankAccountID, ok := event.Data.Object["id"].(string)
	if !ok || bankAccountID == "" {
		h.logger.Error("external account event without object id", "event_id", event.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event object"})
		return
	}

	err = h.settlementService.RegisterExternalAccount(c.Request.Context(), event.Account, bankAccountID)
	if err != nil {
		h.logger.Error("failed to register external account",
			"gateway_account", event.Account, "error", err)
		// Non-2xx makes the processor redeliver. An unknown account will
		// never resolve, so acknowledge it instead of retrying forever.
		if errors.Is(err, settlement.ErrUnknownGatewayAccount) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
