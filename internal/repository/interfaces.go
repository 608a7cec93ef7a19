package repository

import (
	"context"

	"sodaclub-ledger-api/internal/model"
)

// TransactionRepository defines ledger transaction data access.
// The table is append-only except for the single compare-and-swap
// status update.
type TransactionRepository interface {
	// ListTransactions returns every transaction, ordered by id.
	ListTransactions(ctx context.Context) ([]model.Transaction, error)

	// GetTransaction returns a single transaction by id.
	// Returns ErrNotFound if no such row exists.
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)

	// AppendTransaction commits a new row and returns it with the
	// store-assigned id. It never rewrites existing rows.
	AppendTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error)

	// UpdateTransactionStatus flips the status of row id from expected to
	// next as a compare-and-swap: if the current status is not expected,
	// it returns ErrConflict without writing anything.
	UpdateTransactionStatus(ctx context.Context, id int64, expected, next model.TransactionStatus) error
}

// SettingRepository defines key/value settings access.
type SettingRepository interface {
	// GetSetting returns the value for key, or ErrNotFound.
	GetSetting(ctx context.Context, key string) (string, error)

	// UpsertSetting updates the singleton row for key in place,
	// appending it if the key does not exist yet.
	UpsertSetting(ctx context.Context, key, value string) error
}

// InventoryRepository defines access to the append-only stock-delta log.
type InventoryRepository interface {
	// ListInventoryDeltas returns the full delta log, ordered by id.
	ListInventoryDeltas(ctx context.Context) ([]model.InventoryDelta, error)

	// AppendInventoryDelta commits a signed stock change.
	AppendInventoryDelta(ctx context.Context, quantity int64) (model.InventoryDelta, error)
}

// MemberRepository defines member directory access. Members are never
// deleted, only switched between active and pending.
type MemberRepository interface {
	// GetMemberByIdentifier finds a member by the immutable identifier.
	// Returns ErrNotFound if no such member exists.
	GetMemberByIdentifier(ctx context.Context, identifier string) (*model.Member, error)

	// ListMembers returns all members.
	ListMembers(ctx context.Context) ([]model.Member, error)

	// AddMember appends a new member. Returns ErrDuplicate if the
	// identifier is already taken.
	AddMember(ctx context.Context, m model.Member) error

	// SetMemberStatus activates or deactivates a member.
	SetMemberStatus(ctx context.Context, identifier string, status model.MemberStatus) error

	// UpdateMemberSecret replaces a member's secret code.
	UpdateMemberSecret(ctx context.Context, identifier, secret string) error
}

// LedgerStore bundles the table repositories offered by a single backend.
type LedgerStore interface {
	TransactionRepository
	SettingRepository
	InventoryRepository
	MemberRepository

	// Close closes the underlying store.
	Close() error
}
