package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/erdum/Necessi-sub000/internal/domain/settlement"
	"github.com/erdum/Necessi-sub000/internal/domain/users"
)

// StripeGateway implements settlement.Gateway against the Stripe API.
// Processor failures are normalized: card-type errors become
// settlement.ErrCardDeclined, everything else settlement.ErrGateway. The
// raw processor error is logged but never surfaced to callers.
type StripeGateway struct {
	api    *client.API
	logger *slog.Logger
}

// NewStripeGateway creates a gateway bound to the given secret key.
func NewStripeGateway(secretKey string, logger *slog.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:    api,
		logger: logger,
	}
}

// EnsureCustomer returns the Stripe customer id for the user, looking up by
// email first and creating the customer when none exists.
func (g *StripeGateway) EnsureCustomer(ctx context.Context, user *users.User) (string, error) {
	listParams := &stripe.CustomerListParams{
		Email: stripe.String(user.Email),
	}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := g.api.Customers.List(listParams)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", g.normalize("list customers", err)
	}

	createParams := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.DisplayName),
	}
	createParams.Context = ctx

	customer, err := g.api.Customers.New(createParams)
	if err != nil {
		return "", g.normalize("create customer", err)
	}
	return customer.ID, nil
}

// Charge captures funds via an off-session payment intent. The idempotency
// key makes a retried capture map to a single charge on the processor side.
func (g *StripeGateway) Charge(ctx context.Context, params settlement.ChargeParams) (*settlement.Receipt, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(params.Amount),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		Customer:      stripe.String(params.CustomerID),
		PaymentMethod: stripe.String(params.PaymentMethodID),
		Description:   stripe.String(params.Description),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	piParams.Context = ctx
	piParams.SetIdempotencyKey(params.IdempotencyKey)

	intent, err := g.api.PaymentIntents.New(piParams)
	if err != nil {
		return nil, g.normalize("create payment intent", err)
	}

	return &settlement.Receipt{
		ChargeID: intent.ID,
		Status:   string(intent.Status),
	}, nil
}

// Refund reverses a captured charge, returning the refund id.
func (g *StripeGateway) Refund(ctx context.Context, chargeID string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(chargeID),
	}
	params.Context = ctx

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return "", g.normalize("create refund", err)
	}
	return refund.ID, nil
}

// Payout transfers funds to an external bank account.
func (g *StripeGateway) Payout(ctx context.Context, bankAccountID string, amount int64) (string, error) {
	params := &stripe.PayoutParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(bankAccountID),
	}
	params.Context = ctx

	payout, err := g.api.Payouts.New(params)
	if err != nil {
		return "", g.normalize("create payout", err)
	}
	return payout.ID, nil
}

func (g *StripeGateway) normalize(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		g.logger.Error("stripe request failed",
			"op", op, "code", stripeErr.Code, "type", stripeErr.Type, "message", stripeErr.Msg)
		if stripeErr.Type == stripe.ErrorTypeCard {
			return settlement.ErrCardDeclined
		}
		return settlement.ErrGateway
	}
	g.logger.Error("stripe request failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s", settlement.ErrGateway, op)
}
