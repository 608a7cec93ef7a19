// Package ledger holds the pure balance and stock arithmetic. Nothing
// here performs I/O; callers read the transaction set through a
// repository and hand it in as a plain slice.
package ledger

import (
	"github.com/shopspring/decimal"

	"sodaclub-ledger-api/internal/model"
)

// Summary is a member's derived position.
//
// Balance follows the canonical sign convention: purchases and
// adjustments add debt, completed payments subtract it, so a positive
// balance means the member owes the club. Pending is the sum of
// payments still awaiting approval; it never affects Balance.
type Summary struct {
	Balance decimal.Decimal `json:"balance"`
	Pending decimal.Decimal `json:"pending"`
}

// ComputeBalance derives a member's balance and pending exposure from
// the full transaction set. The fold is order-independent and an empty
// set yields a zero summary. Amounts are already coerced to valid
// decimals at the repository read boundary.
func ComputeBalance(memberID string, txs []model.Transaction) Summary {
	balance := decimal.Zero
	pending := decimal.Zero

	for _, tx := range txs {
		if tx.MemberIdentifier != memberID {
			continue
		}
		switch tx.Type {
		case model.TypePurchase, model.TypeAdjustment:
			balance = balance.Add(tx.Amount)
		case model.TypePayment:
			if tx.Status == model.StatusCompleted {
				balance = balance.Sub(tx.Amount)
			} else {
				pending = pending.Add(tx.Amount)
			}
		}
	}

	return Summary{Balance: balance, Pending: pending}
}

// PurchaseAmount is the debt incurred by buying quantity units at the
// given unit price.
func PurchaseAmount(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}

// CurrentStock recomputes stock from the full delta log minus one unit
// per purchase transaction. No running counter exists anywhere.
func CurrentStock(deltas []model.InventoryDelta, txs []model.Transaction) int64 {
	var stock int64
	for _, d := range deltas {
		stock += d.Quantity
	}
	for _, tx := range txs {
		if tx.Type == model.TypePurchase {
			stock--
		}
	}
	return stock
}

// PendingPayments filters the payments still awaiting approval, across
// all members. This is the admin approval queue.
func PendingPayments(txs []model.Transaction) []model.Transaction {
	var pending []model.Transaction
	for _, tx := range txs {
		if tx.Type == model.TypePayment && tx.Status == model.StatusPending {
			pending = append(pending, tx)
		}
	}
	return pending
}

// FilterByMember returns the transactions belonging to one member.
func FilterByMember(memberID string, txs []model.Transaction) []model.Transaction {
	var out []model.Transaction
	for _, tx := range txs {
		if tx.MemberIdentifier == memberID {
			out = append(out, tx)
		}
	}
	return out
}
