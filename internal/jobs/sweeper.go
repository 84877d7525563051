package jobs

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erdum/Necessi-sub000/internal/notify"
)

// Sweep intervals. Fixed schedules, independent of request traffic.
const (
	PurgeInterval   = 24 * time.Hour
	PickupInterval  = 3 * time.Hour
	PaymentInterval = 6 * time.Hour

	// StaleBidAge is how long an accepted bid may sit unpaid before the
	// purge sweep treats it as abandoned.
	StaleBidAge = 24 * time.Hour
)

// Sweeper runs the settlement background sweeps. Every sweep is
// fault-isolated per record: one bad bid is logged and skipped, the rest
// of the batch continues.
type Sweeper struct {
	repo     SweepRepository
	expirer  BidExpirer
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper creates a new settlement sweeper.
func NewSweeper(repo SweepRepository, expirer BidExpirer, notifier notify.Notifier, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		expirer:  expirer,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run starts the three sweep loops and blocks until the context is done.
func (s *Sweeper) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.loop(gctx, PurgeInterval, "stale_bid_purge", func(ctx context.Context) error {
			_, err := s.PurgeStaleBids(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.loop(gctx, PickupInterval, "pickup_reminder", s.RemindHandovers)
	})
	g.Go(func() error {
		return s.loop(gctx, PaymentInterval, "payment_reminder", s.RemindPayments)
	})

	return g.Wait()
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration, name string, run func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial run
	if err := run(ctx); err != nil {
		s.logger.Error("Sweep failed", "sweep", name, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := run(ctx); err != nil {
				s.logger.Error("Sweep failed", "sweep", name, "error", err)
			}
		}
	}
}

// PurgeStaleBids deletes accepted bids older than StaleBidAge that never
// settled into an order. Returns how many bids were purged.
func (s *Sweeper) PurgeStaleBids(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-StaleBidAge)
	stale, err := s.repo.StaleAcceptedBids(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, candidate := range stale {
		if err := s.expirer.ExpireBid(ctx, candidate.BidID); err != nil {
			s.logger.Error("Failed to expire stale bid",
				"bid_id", candidate.BidID, "post_id", candidate.PostID, "error", err)
			continue
		}
		purged++
	}

	if purged > 0 {
		s.logger.Info("Purged stale accepted bids", "count", purged)
	}
	return purged, nil
}

// RemindPayments nudges post owners whose accepted bid was never paid.
func (s *Sweeper) RemindPayments(ctx context.Context) error {
	due, err := s.repo.BidsAwaitingPayment(ctx)
	if err != nil {
		return err
	}

	for _, d := range due {
		n := notify.Notification{
			Kind:        notify.KindPaymentReminder,
			RecipientID: d.OwnerID,
			PostID:      d.PostID,
			BidID:       d.BidID,
			Message:     notify.PaymentReminderMessage(d.PostTitle, d.Amount),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("Failed to dispatch payment reminder",
				"bid_id", d.BidID, "recipient_id", d.OwnerID, "error", err)
		}
	}
	return nil
}

// RemindHandovers runs the two pickup/return queries and nudges whichever
// party still has to confirm.
func (s *Sweeper) RemindHandovers(ctx context.Context) error {
	now := s.now()

	pickups, err := s.repo.OrdersAwaitingPickup(ctx, now)
	if err != nil {
		return err
	}
	for _, d := range pickups {
		n := notify.Notification{
			Kind:        notify.KindPickupReminder,
			RecipientID: d.RecipientID,
			PostID:      d.PostID,
			BidID:       d.BidID,
			Message:     notify.PickupReminderMessage(d.PostTitle),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("Failed to dispatch pickup reminder",
				"order_id", d.OrderID, "recipient_id", d.RecipientID, "error", err)
		}
	}

	returns, err := s.repo.OrdersAwaitingReturn(ctx, now)
	if err != nil {
		return err
	}
	for _, d := range returns {
		n := notify.Notification{
			Kind:        notify.KindReturnReminder,
			RecipientID: d.RecipientID,
			PostID:      d.PostID,
			BidID:       d.BidID,
			Message:     notify.ReturnReminderMessage(d.PostTitle),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("Failed to dispatch return reminder",
				"order_id", d.OrderID, "recipient_id", d.RecipientID, "error", err)
		}
	}

	return nil
}
