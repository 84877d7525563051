package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/erdum/Necessi-sub000/internal/events"
)

// Notification kinds used as routing-key suffixes on the settlement exchange.
const (
	KindPaymentReminder = "payment_reminder"
	KindPickupReminder  = "pickup_reminder"
	KindReturnReminder  = "return_reminder"
)

// Notification is the payload handed to the delivery transport. The
// transport itself (push, email) is an external capability; this service
// only dispatches.
type Notification struct {
	Kind        string    `json:"kind"`
	RecipientID uuid.UUID `json:"recipient_id"`
	PostID      uuid.UUID `json:"post_id"`
	BidID       uuid.UUID `json:"bid_id"`
	Message     string    `json:"message"`
}

// Notifier dispatches a notification to whatever transport is configured.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// AMQPNotifier publishes notifications as JSON messages on the settlement
// exchange under notify.<kind> routing keys.
type AMQPNotifier struct {
	publisher *events.RabbitMQPublisher
}

func NewAMQPNotifier(publisher *events.RabbitMQPublisher) *AMQPNotifier {
	return &AMQPNotifier{publisher: publisher}
}

func (n *AMQPNotifier) Notify(ctx context.Context, notification Notification) error {
	routingKey := "notify." + notification.Kind
	return n.publisher.PublishJSON(ctx, events.Exchange, routingKey, notification)
}

// ConsoleNotifier logs notifications instead of delivering them. Used as
// the terminal delegate in the worker and in local development.
type ConsoleNotifier struct {
	logger *slog.Logger
}

func NewConsoleNotifier(logger *slog.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) Notify(_ context.Context, notification Notification) error {
	n.logger.Info("notification",
		"kind", notification.Kind,
		"recipient_id", notification.RecipientID,
		"post_id", notification.PostID,
		"message", notification.Message,
	)
	return nil
}

// Format helpers keep reminder copy in one place.

func PaymentReminderMessage(postTitle string, amount int64) string {
	return fmt.Sprintf("Your accepted bid on %q (%d) is still awaiting payment.", postTitle, amount)
}

func PickupReminderMessage(postTitle string) string {
	return fmt.Sprintf("Your order for %q is ready: please confirm pickup.", postTitle)
}

func ReturnReminderMessage(postTitle string) string {
	return fmt.Sprintf("The lending period for %q has ended: please confirm the return.", postTitle)
}
