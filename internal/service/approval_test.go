package service

import (
	"context"
	"sync"
	"testing"

	"sodaclub-ledger-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("pending payment becomes completed and settles the balance", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		_, err := tc.ledger.RecordPurchase(ctx, dana, 2)
		require.NoError(t, err)
		paymentTx, err := tc.ledger.ReportPayment(ctx, dana, decimal.RequireFromString("20"), "")
		require.NoError(t, err)

		before, err := tc.ledger.Summary(ctx, dana.Identifier)
		require.NoError(t, err)
		assert.True(t, before.Balance.Equal(decimal.RequireFromString("5")),
			"pending payment must not move the balance, got %s", before.Balance)
		assert.True(t, before.Pending.Equal(decimal.RequireFromString("20")))

		already, err := tc.approval.Approve(ctx, admin, paymentTx.ID)
		require.NoError(t, err)
		assert.False(t, already)

		after, err := tc.ledger.Summary(ctx, dana.Identifier)
		require.NoError(t, err)
		assert.True(t, after.Balance.Equal(decimal.RequireFromString("-15")),
			"expected -15 after approval, got %s", after.Balance)
		assert.True(t, after.Pending.IsZero())
	})

	t.Run("approving twice is a no-op", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		paymentTx, err := tc.ledger.ReportPayment(ctx, dana, decimal.RequireFromString("10"), "")
		require.NoError(t, err)

		already, err := tc.approval.Approve(ctx, admin, paymentTx.ID)
		require.NoError(t, err)
		assert.False(t, already)

		already, err = tc.approval.Approve(ctx, admin, paymentTx.ID)
		require.NoError(t, err)
		assert.True(t, already)

		summary, err := tc.ledger.Summary(ctx, dana.Identifier)
		require.NoError(t, err)
		assert.True(t, summary.Balance.Equal(decimal.RequireFromString("-10")),
			"second approval must not apply the payment again, got %s", summary.Balance)
	})

	t.Run("concurrent approvals apply the payment once", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		paymentTx, err := tc.ledger.ReportPayment(ctx, dana, decimal.RequireFromString("10"), "")
		require.NoError(t, err)

		const racers = 6
		var wg sync.WaitGroup
		errs := make(chan error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := tc.approval.Approve(ctx, admin, paymentTx.ID)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err, "a losing approval must read as already settled, not fail")
		}

		summary, err := tc.ledger.Summary(ctx, dana.Identifier)
		require.NoError(t, err)
		assert.True(t, summary.Balance.Equal(decimal.RequireFromString("-10")),
			"payment applied more than once, balance %s", summary.Balance)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		tc := newTestClub(t)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		paymentTx, err := tc.ledger.ReportPayment(ctx, dana, decimal.RequireFromString("10"), "")
		require.NoError(t, err)

		_, err = tc.approval.Approve(ctx, dana, paymentTx.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("only payments can be approved", func(t *testing.T) {
		tc := newTestClub(t)
		admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
		dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)

		purchase, err := tc.ledger.RecordPurchase(ctx, dana, 1)
		require.NoError(t, err)

		_, err = tc.approval.Approve(ctx, admin, purchase.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestApprovalService_PendingPayments(t *testing.T) {
	ctx := context.Background()
	tc := newTestClub(t)
	admin := tc.addMember(t, "admin@club", "0000", model.RoleAdmin, model.MemberActive)
	dana := tc.addMember(t, "dana@club", "1234", model.RoleUser, model.MemberActive)
	omer := tc.addMember(t, "omer@club", "5678", model.RoleUser, model.MemberActive)

	_, err := tc.ledger.RecordPurchase(ctx, dana, 1)
	require.NoError(t, err)
	first, err := tc.ledger.ReportPayment(ctx, dana, decimal.RequireFromString("5"), "")
	require.NoError(t, err)
	_, err = tc.ledger.ReportPayment(ctx, omer, decimal.RequireFromString("3"), "")
	require.NoError(t, err)

	t.Run("queue spans all members", func(t *testing.T) {
		pending, err := tc.approval.PendingPayments(ctx, admin)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("approved payments leave the queue", func(t *testing.T) {
		_, err := tc.approval.Approve(ctx, admin, first.ID)
		require.NoError(t, err)

		pending, err := tc.approval.PendingPayments(ctx, admin)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, omer.Identifier, pending[0].MemberIdentifier)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		_, err := tc.approval.PendingPayments(ctx, dana)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
