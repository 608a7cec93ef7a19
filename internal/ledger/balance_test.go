package ledger

import (
	"testing"

	"sodaclub-ledger-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tx(member string, typ model.TransactionType, amount string, status model.TransactionStatus) model.Transaction {
	return model.Transaction{
		MemberIdentifier: member,
		Type:             typ,
		Amount:           dec(amount),
		Status:           status,
	}
}

func TestComputeBalance(t *testing.T) {
	t.Run("empty set yields zero summary", func(t *testing.T) {
		got := ComputeBalance("dana@club", nil)
		assert.True(t, got.Balance.IsZero())
		assert.True(t, got.Pending.IsZero())
	})

	t.Run("purchases and adjustments add debt, completed payments subtract", func(t *testing.T) {
		txs := []model.Transaction{
			tx("dana@club", model.TypePurchase, "5", model.StatusCompleted),
			tx("dana@club", model.TypeAdjustment, "3", model.StatusCompleted),
			tx("dana@club", model.TypePayment, "6", model.StatusCompleted),
		}
		got := ComputeBalance("dana@club", txs)
		assert.True(t, got.Balance.Equal(dec("2")), "balance = 5 + 3 - 6, got %s", got.Balance)
		assert.True(t, got.Pending.IsZero())
	})

	t.Run("negative adjustment credits the member", func(t *testing.T) {
		txs := []model.Transaction{
			tx("dana@club", model.TypePurchase, "10", model.StatusCompleted),
			tx("dana@club", model.TypeAdjustment, "-4", model.StatusCompleted),
		}
		got := ComputeBalance("dana@club", txs)
		assert.True(t, got.Balance.Equal(dec("6")))
	})

	t.Run("pending payment leaves balance unchanged", func(t *testing.T) {
		txs := []model.Transaction{
			tx("dana@club", model.TypePurchase, "5", model.StatusCompleted),
			tx("dana@club", model.TypePayment, "100", model.StatusPending),
		}
		got := ComputeBalance("dana@club", txs)
		assert.True(t, got.Balance.Equal(dec("5")), "pending payment must not affect balance")
		assert.True(t, got.Pending.Equal(dec("100")))
	})

	t.Run("other members' transactions are ignored", func(t *testing.T) {
		txs := []model.Transaction{
			tx("dana@club", model.TypePurchase, "5", model.StatusCompleted),
			tx("omer@club", model.TypePurchase, "500", model.StatusCompleted),
			tx("omer@club", model.TypePayment, "20", model.StatusCompleted),
		}
		got := ComputeBalance("dana@club", txs)
		assert.True(t, got.Balance.Equal(dec("5")))
	})

	t.Run("order independence", func(t *testing.T) {
		txs := []model.Transaction{
			tx("dana@club", model.TypePurchase, "2.5", model.StatusCompleted),
			tx("dana@club", model.TypePayment, "10", model.StatusCompleted),
			tx("dana@club", model.TypeAdjustment, "1.25", model.StatusCompleted),
			tx("dana@club", model.TypePayment, "3", model.StatusPending),
			tx("dana@club", model.TypePurchase, "7.5", model.StatusCompleted),
		}

		want := ComputeBalance("dana@club", txs)

		reversed := make([]model.Transaction, len(txs))
		for i, v := range txs {
			reversed[len(txs)-1-i] = v
		}
		got := ComputeBalance("dana@club", reversed)

		assert.True(t, got.Balance.Equal(want.Balance))
		assert.True(t, got.Pending.Equal(want.Pending))
	})

	t.Run("dana scenario", func(t *testing.T) {
		// price 2.5, purchase qty 2, report 20, approve: balance -15.
		price := dec("2.5")
		txs := []model.Transaction{
			tx("dana@club", model.TypePurchase, PurchaseAmount(price, 2).String(), model.StatusCompleted),
			tx("dana@club", model.TypePayment, "20", model.StatusPending),
		}

		before := ComputeBalance("dana@club", txs)
		assert.True(t, before.Balance.Equal(dec("5")))
		assert.True(t, before.Pending.Equal(dec("20")))

		txs[1].Status = model.StatusCompleted
		after := ComputeBalance("dana@club", txs)
		assert.True(t, after.Balance.Equal(dec("-15")), "credit of 15 expected, got %s", after.Balance)
		assert.True(t, after.Pending.IsZero())
	})
}

func TestPurchaseAmount(t *testing.T) {
	got := PurchaseAmount(dec("2.5"), 3)
	assert.True(t, got.Equal(dec("7.5")), "2.5 x 3 must be exactly 7.5, got %s", got)
}

func TestCurrentStock(t *testing.T) {
	t.Run("deltas minus purchases", func(t *testing.T) {
		deltas := []model.InventoryDelta{{Quantity: 24}}
		var txs []model.Transaction
		for i := 0; i < 5; i++ {
			txs = append(txs, tx("dana@club", model.TypePurchase, "2.5", model.StatusCompleted))
		}
		assert.Equal(t, int64(19), CurrentStock(deltas, txs))
	})

	t.Run("negative deltas correct the count", func(t *testing.T) {
		deltas := []model.InventoryDelta{{Quantity: 24}, {Quantity: -4}}
		assert.Equal(t, int64(20), CurrentStock(deltas, nil))
	})

	t.Run("payments and adjustments do not consume stock", func(t *testing.T) {
		deltas := []model.InventoryDelta{{Quantity: 10}}
		txs := []model.Transaction{
			tx("dana@club", model.TypePayment, "20", model.StatusCompleted),
			tx("dana@club", model.TypeAdjustment, "5", model.StatusCompleted),
		}
		assert.Equal(t, int64(10), CurrentStock(deltas, txs))
	})
}

func TestPendingPayments(t *testing.T) {
	txs := []model.Transaction{
		tx("dana@club", model.TypePayment, "20", model.StatusPending),
		tx("omer@club", model.TypePayment, "10", model.StatusCompleted),
		tx("omer@club", model.TypePayment, "7", model.StatusPending),
		tx("dana@club", model.TypePurchase, "2.5", model.StatusCompleted),
	}

	pending := PendingPayments(txs)
	require.Len(t, pending, 2)
	assert.Equal(t, "dana@club", pending[0].MemberIdentifier)
	assert.Equal(t, "omer@club", pending[1].MemberIdentifier)
}

func TestFilterByMember(t *testing.T) {
	txs := []model.Transaction{
		tx("dana@club", model.TypePurchase, "2.5", model.StatusCompleted),
		tx("omer@club", model.TypePurchase, "2.5", model.StatusCompleted),
		tx("dana@club", model.TypePayment, "5", model.StatusPending),
	}

	mine := FilterByMember("dana@club", txs)
	require.Len(t, mine, 2)
	for _, tx := range mine {
		assert.Equal(t, "dana@club", tx.MemberIdentifier)
	}
}
