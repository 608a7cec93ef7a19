package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"sodaclub-ledger-api/internal/cache"
	"sodaclub-ledger-api/internal/ledger"
	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/repository"
)

// ApprovalService drives the single state transition the ledger allows:
// a pending payment becoming completed. The transition rides on the
// store's compare-and-swap contract, so two admins approving the same
// payment concurrently produce exactly one state change.
type ApprovalService struct {
	transactions repository.TransactionRepository
	cache        cache.Cache
}

// NewApprovalService creates a new approval service.
func NewApprovalService(transactions repository.TransactionRepository, c cache.Cache) *ApprovalService {
	return &ApprovalService{transactions: transactions, cache: c}
}

// Approve flips payment id from pending to completed. Admin only.
//
// The call is idempotent: approving an already-completed payment
// returns alreadySettled=true with no error and no state change. A
// losing concurrent approval gets the same answer; the caller must
// treat it as done, not retry.
func (s *ApprovalService) Approve(ctx context.Context, actor *model.Member, id int64) (alreadySettled bool, err error) {
	if !actor.IsAdmin() {
		return false, ErrForbidden
	}

	tx, err := s.transactions.GetTransaction(ctx, id)
	if err != nil {
		return false, err
	}
	if tx.Type != model.TypePayment {
		return false, fmt.Errorf("transaction %d is a %s: %w", id, tx.Type, ErrInvalidTransition)
	}
	if tx.Status == model.StatusCompleted {
		return true, nil
	}

	err = s.transactions.UpdateTransactionStatus(ctx, id, model.StatusPending, model.StatusCompleted)
	if errors.Is(err, repository.ErrConflict) {
		// Someone else settled it between our read and the swap.
		current, gerr := s.transactions.GetTransaction(ctx, id)
		if gerr == nil && current.Status == model.StatusCompleted {
			return true, nil
		}
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("failed to approve payment %d: %w", id, err)
	}

	invalidateTransactions(ctx, s.cache)
	log.Printf("[ApprovalService] Payment id=%d approved by %s", id, actor.Identifier)
	return false, nil
}

// PendingPayments returns the approval queue across all members.
// Admin only.
func (s *ApprovalService) PendingPayments(ctx context.Context, actor *model.Member) ([]model.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	txs, err := s.transactions.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return ledger.PendingPayments(txs), nil
}
