package mirror

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/erdum/Necessi-sub000/internal/events"
)

const mirrorQueue = "mirror_applier"

// Applier consumes bid lifecycle events and replays them onto the Redis
// mirror. Transient apply failures nack with requeue; malformed payloads
// are dropped since redelivery cannot fix them.
type Applier struct {
	conn   *amqp.Connection
	store  *Store
	logger *slog.Logger
}

func NewApplier(conn *amqp.Connection, store *Store, logger *slog.Logger) *Applier {
	return &Applier{
		conn:   conn,
		store:  store,
		logger: logger,
	}
}

// Run starts the consumer loop.
func (a *Applier) Run(ctx context.Context) error {
	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := a.setup(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(mirrorQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	a.logger.Info("Waiting for bid events...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			a.handleDelivery(ctx, d)
		}
	}
}

func (a *Applier) setup(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(events.Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(mirrorQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	for _, key := range []string{
		events.EventTypeBidCreated.String(),
		events.EventTypeBidUpdated.String(),
		events.EventTypeBidDeleted.String(),
		events.EventTypeOrderCreated.String(),
	} {
		if err := ch.QueueBind(q.Name, key, events.Exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) handleDelivery(ctx context.Context, d amqp.Delivery) {
	err := a.apply(ctx, d.RoutingKey, d.Body)
	if err != nil {
		a.logger.Error("Failed to apply event", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			a.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		a.logger.Error("Failed to Ack message", "error", ackErr)
	}
}

// apply routes one event to the matching mirror mutation. Every mutation
// is an idempotent upsert or delete, so redelivered events converge to
// the same mirror state.
func (a *Applier) apply(ctx context.Context, routingKey string, body []byte) error {
	switch events.EventType(routingKey) {
	case events.EventTypeBidCreated, events.EventTypeBidUpdated:
		payload, err := events.Unmarshal[events.BidUpserted](body)
		if err != nil {
			a.logger.Error("Dropping malformed bid payload", "routing_key", routingKey, "error", err)
			return nil
		}
		return a.store.UpsertBid(ctx, BidDocument{
			BidID:      payload.BidID,
			PostID:     payload.PostID,
			UserID:     payload.UserID,
			Amount:     payload.Amount,
			Status:     payload.Status,
			UserName:   payload.UserName,
			UserAvatar: payload.UserAvatar,
			CreatedAt:  payload.CreatedAt,
		}, payload.LowestBidID)

	case events.EventTypeBidDeleted:
		payload, err := events.Unmarshal[events.BidDeleted](body)
		if err != nil {
			a.logger.Error("Dropping malformed bid payload", "routing_key", routingKey, "error", err)
			return nil
		}
		return a.store.DeleteBid(ctx, payload.PostID, payload.UserID, payload.LowestBidID)

	case events.EventTypeOrderCreated:
		payload, err := events.Unmarshal[events.OrderCreated](body)
		if err != nil {
			a.logger.Error("Dropping malformed order payload", "error", err)
			return nil
		}
		return a.store.MarkOrdered(ctx, payload.PostID, payload.UserID, payload.TransactionID)

	default:
		a.logger.Warn("Ignoring unknown routing key", "routing_key", routingKey)
		return nil
	}
}
