package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypePurchase   TransactionType = "purchase"
	TypePayment    TransactionType = "payment"
	TypeAdjustment TransactionType = "adjustment"
)

// TransactionStatus is the lifecycle state of a transaction.
// Only payments ever start pending; the single permitted mutation
// is the pending -> completed flip performed by the approval workflow.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
)

// Transaction is an append-only ledger entry.
//
// Sign convention: purchases and adjustments increase a member's debt,
// completed payments decrease it. A positive adjustment always raises debt;
// credits are negative adjustments.
type Transaction struct {
	ID               int64             `json:"id"`
	Timestamp        time.Time         `json:"timestamp"`
	MemberIdentifier string            `json:"member_identifier"`
	Type             TransactionType   `json:"type"`
	Amount           decimal.Decimal   `json:"amount"`
	Status           TransactionStatus `json:"status"`
	Notes            string            `json:"notes,omitempty"`
}

// IsSettled reports whether the transaction counts toward the balance.
func (t *Transaction) IsSettled() bool {
	return t.Status == StatusCompleted
}
