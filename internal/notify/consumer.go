package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/erdum/Necessi-sub000/internal/events"
)

const notifyQueue = "settlement_notifications"

// Consumer drains notify.* messages and hands them to the delivery
// delegate. Delivery failures nack with requeue so at-least-once delivery
// holds across worker restarts.
type Consumer struct {
	conn     *amqp.Connection
	delegate Notifier
	logger   *slog.Logger
}

func NewConsumer(conn *amqp.Connection, delegate Notifier, logger *slog.Logger) *Consumer {
	return &Consumer{
		conn:     conn,
		delegate: delegate,
		logger:   logger,
	}
}

// Run starts the consumer loop.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setup(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(notifyQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for notifications...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}

			var notification Notification
			if err := json.Unmarshal(d.Body, &notification); err != nil {
				c.logger.Error("Failed to decode notification", "error", err)
				// Unparseable now means unparseable forever.
				if nackErr := d.Nack(false, false); nackErr != nil {
					c.logger.Error("Failed to Nack message", "error", nackErr)
				}
				continue
			}

			if err := c.delegate.Notify(ctx, notification); err != nil {
				c.logger.Error("Failed to deliver notification", "kind", notification.Kind, "error", err)
				if nackErr := d.Nack(false, true); nackErr != nil {
					c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
				}
				continue
			}

			if ackErr := d.Ack(false); ackErr != nil {
				c.logger.Error("Failed to Ack message", "error", ackErr)
			}
		}
	}
}

func (c *Consumer) setup(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(events.Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(notifyQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	return ch.QueueBind(q.Name, "notify.#", events.Exchange, false, nil)
}
