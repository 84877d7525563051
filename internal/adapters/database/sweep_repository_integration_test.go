//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infradb "github.com/erdum/Necessi-sub000/internal/adapters/database"
	"github.com/erdum/Necessi-sub000/internal/testhelpers"
)

func TestPostgresSweepRepository_Handovers(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()
	pool := testDB.Pool

	repo := infradb.NewPostgresSweepRepository(pool)
	ctx := context.Background()
	now := time.Now()

	ownerID := testhelpers.SeedUser(t, pool, "owner@example.com", "Owner")
	bidderID := testhelpers.SeedUser(t, pool, "bidder@example.com", "Bidder")

	// Window fully in the past, borrower never confirmed pickup.
	endedPost := testhelpers.SeedPostWindow(t, pool, ownerID, "Ladder", 100,
		now.Add(-10*24*time.Hour), now.Add(-3*24*time.Hour))
	endedBid := testhelpers.SeedBid(t, pool, endedPost, bidderID, 50, "accepted")
	testhelpers.SeedTransaction(t, pool, "pi_ended", ownerID, 50)
	endedOrder := testhelpers.SeedOrder(t, pool, endedPost, endedBid, "pi_ended")

	// Window still open: started but not ended.
	openPost := testhelpers.SeedPostWindow(t, pool, ownerID, "Drill", 100,
		now.Add(-24*time.Hour), now.Add(6*24*time.Hour))
	openBid := testhelpers.SeedBid(t, pool, openPost, bidderID, 40, "accepted")
	testhelpers.SeedTransaction(t, pool, "pi_open", ownerID, 40)
	openOrder := testhelpers.SeedOrder(t, pool, openPost, openBid, "pi_open")

	t.Run("pickup reminders target the post owner", func(t *testing.T) {
		due, err := repo.OrdersAwaitingPickup(ctx, now)
		require.NoError(t, err)
		require.Len(t, due, 2)
		for _, d := range due {
			assert.Equal(t, ownerID, d.RecipientID)
		}
	})

	t.Run("return reminder fires even when pickup was never confirmed", func(t *testing.T) {
		due, err := repo.OrdersAwaitingReturn(ctx, now)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, endedOrder, due[0].OrderID)
		assert.Equal(t, bidderID, due[0].RecipientID, "return reminder goes to the lender")
	})

	t.Run("confirmed return drops out of the sweep", func(t *testing.T) {
		_, err := pool.Exec(ctx, `UPDATE orders SET received_by_lender = NOW() WHERE id = $1`, endedOrder)
		require.NoError(t, err)

		due, err := repo.OrdersAwaitingReturn(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("confirmed pickup drops out of the sweep", func(t *testing.T) {
		_, err := pool.Exec(ctx, `UPDATE orders SET received_by_borrower = NOW() WHERE id = $1`, openOrder)
		require.NoError(t, err)

		due, err := repo.OrdersAwaitingPickup(ctx, now)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, endedOrder, due[0].OrderID)
	})
}
