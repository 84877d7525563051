package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewRouter configures the gin engine with all routes.
func NewRouter(handler *Handler, webhookHandler *WebhookHandler, jwtSecret string, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))

	router.GET("/health", handler.Health)

	// Webhooks authenticate by signature, not bearer token.
	router.POST("/v1/webhooks/stripe", webhookHandler.HandleStripe)

	v1 := router.Group("/v1")
	v1.Use(RequireAuth(jwtSecret))
	{
		v1.POST("/bids", handler.SubmitBid)
		v1.POST("/bids/:id/accept", handler.AcceptBid)
		v1.POST("/bids/:id/reject", handler.RejectBid)
		v1.DELETE("/bids/:id", handler.WithdrawBid)
		v1.GET("/posts/:id/bids", handler.GetPostBids)
		v1.POST("/payments/capture", handler.CapturePayment)
		v1.POST("/orders/:id/receipt", handler.ConfirmReceipt)
		v1.POST("/withdrawals", handler.RequestWithdrawal)
	}

	return router
}

// NewServer wraps the router in an h2c-capable HTTP server so gRPC-style
// HTTP/2 clients can reach it without TLS termination in front.
func NewServer(addr string, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(router, &http2.Server{}),
	}
}
