package service

import (
	"context"
	"testing"

	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_RecordPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("amount is quantity times the current price", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		require.NoError(t, tc.registry.SetUnitPrice(ctx, admin, decimal.RequireFromString("3")))

		tx, err := tc.ledger.RecordPurchase(ctx, dana, 4)
		require.NoError(t, err)
		assert.True(t, tx.Amount.Equal(decimal.RequireFromString("12")))
		assert.Equal(t, model.StatusCompleted, tx.Status)
		assert.Equal(t, "4 @ 3", tx.Notes)
	})

	t.Run("price changes never rewrite old purchases", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		_, err := tc.ledger.RecordPurchase(ctx, dana, 1) // default 2.5
		require.NoError(t, err)
		require.NoError(t, tc.registry.SetUnitPrice(ctx, admin, decimal.RequireFromString("4")))
		_, err = tc.ledger.RecordPurchase(ctx, dana, 1)
		require.NoError(t, err)

		summary, err := tc.ledger.Summary(ctx, dana.Identifier)
		require.NoError(t, err)
		assert.True(t, summary.Balance.Equal(decimal.RequireFromString("6.5")),
			"expected 2.5 + 4, got %s", summary.Balance)
	})

	t.Run("purchases consume stock", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		_, err := tc.registry.AddStock(ctx, admin, 24)
		require.NoError(t, err)

		// Stock drops one unit per purchase row.
		_, err = tc.ledger.RecordPurchase(ctx, dana, 1)
		require.NoError(t, err)
		_, err = tc.ledger.RecordPurchase(ctx, dana, 1)
		require.NoError(t, err)

		stock, err := tc.registry.Stock(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(22), stock)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		tc := newTestClub(t)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		_, err := tc.ledger.RecordPurchase(ctx, dana, 0)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestLedgerService_ReportPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("payment starts pending", func(t *testing.T) {
		tc := newTestClub(t)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		tx, err := tc.ledger.ReportPayment(ctx, dana, decimal.RequireFromString("20"), "cash box")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, tx.Status)
		assert.Equal(t, "cash box", tx.Notes)
	})

	t.Run("non-positive amounts rejected", func(t *testing.T) {
		tc := newTestClub(t)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		for _, amount := range []string{"0", "-5"} {
			_, err := tc.ledger.ReportPayment(ctx, dana, decimal.RequireFromString(amount), "")
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr, "amount %s", amount)
		}
	})
}

func TestLedgerService_RecordAdjustment(t *testing.T) {
	ctx := context.Background()

	t.Run("positive adjustment raises debt, negative credits", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		_, err := tc.ledger.RecordAdjustment(ctx, admin, dana.Identifier, decimal.RequireFromString("3"), "broken bottle")
		require.NoError(t, err)
		_, err = tc.ledger.RecordAdjustment(ctx, admin, dana.Identifier, decimal.RequireFromString("-1"), "")
		require.NoError(t, err)

		summary, err := tc.ledger.Summary(ctx, dana.Identifier)
		require.NoError(t, err)
		assert.True(t, summary.Balance.Equal(decimal.RequireFromString("2")))
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		tc := newTestClub(t)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		_, err := tc.ledger.RecordAdjustment(ctx, dana, dana.Identifier, decimal.RequireFromString("3"), "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown member rejected", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)

		_, err := tc.ledger.RecordAdjustment(ctx, admin, "ghost@club", decimal.RequireFromString("3"), "")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		_, err := tc.ledger.RecordAdjustment(ctx, admin, dana.Identifier, decimal.Zero, "")
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestLedgerService_CacheInvalidation(t *testing.T) {
	ctx := context.Background()
	tc := newTestClub(t)
	dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

	// Prime the cache, write behind it, and read again: the member must
	// see their own purchase immediately, not after the TTL.
	_, err := tc.ledger.Summary(ctx, dana.Identifier)
	require.NoError(t, err)

	_, err = tc.ledger.RecordPurchase(ctx, dana, 1)
	require.NoError(t, err)

	summary, err := tc.ledger.Summary(ctx, dana.Identifier)
	require.NoError(t, err)
	assert.True(t, summary.Balance.Equal(decimal.RequireFromString("2.5")),
		"stale cache served after a write, balance %s", summary.Balance)
}

func TestLedgerService_MemberTransactions(t *testing.T) {
	ctx := context.Background()
	tc := newTestClub(t)
	dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)
	omer := tc.addMember(t, "omer@club", "5678", model.RoleUser, model.MemberActive)

	_, err := tc.ledger.RecordPurchase(ctx, dana, 1)
	require.NoError(t, err)
	_, err = tc.ledger.RecordPurchase(ctx, omer, 1)
	require.NoError(t, err)

	txs, err := tc.ledger.MemberTransactions(ctx, dana.Identifier)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, dana.Identifier, txs[0].MemberIdentifier)
}
