package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"sodaclub-ledger-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteLedgerStore {
	t.Helper()
	store, err := NewSQLiteLedgerStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteLedgerStore_Transactions(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	t.Run("append assigns id and round-trips", func(t *testing.T) {
		tx, err := store.AppendTransaction(ctx, model.Transaction{
			MemberIdentifier: "dana@club",
			Type:             model.TypePurchase,
			Amount:           decimal.RequireFromString("2.5"),
			Status:           model.StatusCompleted,
			Notes:            "1 @ 2.5",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), tx.ID)

		got, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, "dana@club", got.MemberIdentifier)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("2.5")))
		assert.Equal(t, model.StatusCompleted, got.Status)
		assert.Equal(t, "1 @ 2.5", got.Notes)
	})

	t.Run("get of unknown id returns not found", func(t *testing.T) {
		_, err := store.GetTransaction(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list is ordered by id", func(t *testing.T) {
		_, err := store.AppendTransaction(ctx, payment("omer@club", "10"))
		require.NoError(t, err)

		txs, err := store.ListTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Less(t, txs[0].ID, txs[1].ID)
	})
}

func TestSQLiteLedgerStore_UpdateTransactionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("conditional update flips the status once", func(t *testing.T) {
		store := newSQLiteStore(t)
		tx, err := store.AppendTransaction(ctx, payment("dana@club", "20"))
		require.NoError(t, err)

		require.NoError(t, store.UpdateTransactionStatus(ctx, tx.ID, model.StatusPending, model.StatusCompleted))

		got, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, got.Status)

		err = store.UpdateTransactionStatus(ctx, tx.ID, model.StatusPending, model.StatusCompleted)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("missing row returns not found", func(t *testing.T) {
		store := newSQLiteStore(t)
		err := store.UpdateTransactionStatus(ctx, 7, model.StatusPending, model.StatusCompleted)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("exactly one concurrent flip wins", func(t *testing.T) {
		store := newSQLiteStore(t)
		tx, err := store.AppendTransaction(ctx, payment("dana@club", "20"))
		require.NoError(t, err)

		const attempts = 8
		results := make(chan error, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- store.UpdateTransactionStatus(ctx, tx.ID, model.StatusPending, model.StatusCompleted)
			}()
		}
		wg.Wait()
		close(results)

		var wins int
		for err := range results {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, ErrConflict)
			}
		}
		assert.Equal(t, 1, wins)
	})
}

func TestSQLiteLedgerStore_SchemaHealing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// Build a pre-approval-era database by hand: no status, no notes.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			member_identifier TEXT NOT NULL,
			type TEXT NOT NULL,
			amount TEXT NOT NULL DEFAULT '0'
		);
		INSERT INTO transactions (timestamp, member_identifier, type, amount)
		VALUES ('2024-03-01 12:00:00', 'dana@club', 'purchase', 'oops');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewSQLiteLedgerStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	txs, err := store.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, model.StatusCompleted, txs[0].Status, "legacy rows default to completed")
	assert.Empty(t, txs[0].Notes)
	assert.True(t, txs[0].Amount.IsZero(), "malformed amount coerces to zero")
}

func TestSQLiteLedgerStore_Settings(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.GetSetting(ctx, model.SettingUnitPrice)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.UpsertSetting(ctx, model.SettingUnitPrice, "2.5"))
	require.NoError(t, store.UpsertSetting(ctx, model.SettingUnitPrice, "3"))

	value, err := store.GetSetting(ctx, model.SettingUnitPrice)
	require.NoError(t, err)
	assert.Equal(t, "3", value)
}

func TestSQLiteLedgerStore_Inventory(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.AppendInventoryDelta(ctx, 24)
	require.NoError(t, err)
	_, err = store.AppendInventoryDelta(ctx, -4)
	require.NoError(t, err)

	deltas, err := store.ListInventoryDeltas(ctx)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, int64(24), deltas[0].Quantity)
	assert.Equal(t, int64(-4), deltas[1].Quantity)
}

func TestSQLiteLedgerStore_Members(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	dana := model.Member{
		Identifier: "dana@club",
		Name:       "Dana",
		Secret:     "1234",
		Role:       model.RoleUser,
		Status:     model.MemberActive,
	}
	require.NoError(t, store.AddMember(ctx, dana))

	t.Run("duplicate identifier rejected", func(t *testing.T) {
		err := store.AddMember(ctx, dana)
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("status and secret updates persist", func(t *testing.T) {
		require.NoError(t, store.SetMemberStatus(ctx, "dana@club", model.MemberPending))
		require.NoError(t, store.UpdateMemberSecret(ctx, "dana@club", "5678"))

		got, err := store.GetMemberByIdentifier(ctx, "dana@club")
		require.NoError(t, err)
		assert.Equal(t, model.MemberPending, got.Status)
		assert.Equal(t, "5678", got.Secret)
	})

	t.Run("unknown member returns not found", func(t *testing.T) {
		_, err := store.GetMemberByIdentifier(ctx, "ghost@club")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, store.SetMemberStatus(ctx, "ghost@club", model.MemberActive), ErrNotFound)
		assert.ErrorIs(t, store.UpdateMemberSecret(ctx, "ghost@club", "x"), ErrNotFound)
	})
}
