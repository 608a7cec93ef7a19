package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sodaclub-ledger-api/internal/cache"
	"sodaclub-ledger-api/internal/ledger"
	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/repository"

	"github.com/shopspring/decimal"
)

// transactionsCacheKey is the single cache key for the serialized
// transaction set. Every ledger write deletes it.
const transactionsCacheKey = "transactions"

// DefaultCacheTTL bounds how stale a cached transaction read may be.
// Mirrors the short worksheet TTL the club ledger always ran with.
const DefaultCacheTTL = 10 * time.Second

// LedgerService is the member-facing ledger: purchases, payment
// reports, adjustments and balance summaries. All reads go through the
// TTL cache; every write invalidates it before returning, so a member's
// next read reflects their own action.
type LedgerService struct {
	transactions repository.TransactionRepository
	members      repository.MemberRepository
	registry     *RegistryService
	cache        cache.Cache
	cacheTTL     time.Duration
}

// NewLedgerService creates a new ledger service. cache may be nil, in
// which case every read goes straight to the store.
func NewLedgerService(
	transactions repository.TransactionRepository,
	members repository.MemberRepository,
	registry *RegistryService,
	c cache.Cache,
	cacheTTL time.Duration,
) *LedgerService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &LedgerService{
		transactions: transactions,
		members:      members,
		registry:     registry,
		cache:        c,
		cacheTTL:     cacheTTL,
	}
}

// MemberSummary is what the member screen renders.
type MemberSummary struct {
	Balance   decimal.Decimal `json:"balance"`
	Pending   decimal.Decimal `json:"pending"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int64           `json:"stock"`
}

// cachedTransactions reads the transaction set through the cache.
// Cache failures degrade to a direct store read; they are never fatal.
func (s *LedgerService) cachedTransactions(ctx context.Context) ([]model.Transaction, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, transactionsCacheKey); err == nil {
			var txs []model.Transaction
			if json.Unmarshal(data, &txs) == nil {
				return txs, nil
			}
		}
	}

	txs, err := s.transactions.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(txs); err == nil {
			if err := s.cache.Set(ctx, transactionsCacheKey, data, s.cacheTTL); err != nil {
				log.Printf("[LedgerService] Cache set failed: %v", err)
			}
		}
	}
	return txs, nil
}

// invalidateTransactions drops the cached transaction set after a write.
func invalidateTransactions(ctx context.Context, c cache.Cache) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, transactionsCacheKey); err != nil {
		log.Printf("[LedgerService] Cache invalidation failed: %v", err)
	}
}

// Summary computes a member's balance, pending exposure, the current
// unit price and stock in one call.
func (s *LedgerService) Summary(ctx context.Context, memberID string) (*MemberSummary, error) {
	txs, err := s.cachedTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	position := ledger.ComputeBalance(memberID, txs)
	stock, err := s.registry.Stock(ctx)
	if err != nil {
		return nil, err
	}

	return &MemberSummary{
		Balance:   position.Balance,
		Pending:   position.Pending,
		UnitPrice: s.registry.UnitPrice(ctx),
		Stock:     stock,
	}, nil
}

// MemberTransactions returns one member's ledger history.
func (s *LedgerService) MemberTransactions(ctx context.Context, memberID string) ([]model.Transaction, error) {
	txs, err := s.cachedTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return ledger.FilterByMember(memberID, txs), nil
}

// RecordPurchase appends a completed purchase of quantity units at the
// current unit price for the acting member.
func (s *LedgerService) RecordPurchase(ctx context.Context, actor *model.Member, quantity int64) (model.Transaction, error) {
	if quantity < 1 {
		return model.Transaction{}, validationErr("quantity", "must be at least 1")
	}

	price := s.registry.UnitPrice(ctx)
	tx := model.Transaction{
		Timestamp:        time.Now().UTC(),
		MemberIdentifier: actor.Identifier,
		Type:             model.TypePurchase,
		Amount:           ledger.PurchaseAmount(price, quantity),
		Status:           model.StatusCompleted,
		Notes:            fmt.Sprintf("%d @ %s", quantity, price),
	}

	committed, err := s.transactions.AppendTransaction(ctx, tx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to record purchase: %w", err)
	}
	invalidateTransactions(ctx, s.cache)

	log.Printf("[LedgerService] Purchase id=%d member=%s amount=%s", committed.ID, actor.Identifier, committed.Amount)
	return committed, nil
}

// ReportPayment appends a pending payment for the acting member. The
// balance is unaffected until an admin approves it.
func (s *LedgerService) ReportPayment(ctx context.Context, actor *model.Member, amount decimal.Decimal, note string) (model.Transaction, error) {
	if amount.Sign() <= 0 {
		return model.Transaction{}, validationErr("amount", "must be greater than zero")
	}

	tx := model.Transaction{
		Timestamp:        time.Now().UTC(),
		MemberIdentifier: actor.Identifier,
		Type:             model.TypePayment,
		Amount:           amount,
		Status:           model.StatusPending,
		Notes:            note,
	}

	committed, err := s.transactions.AppendTransaction(ctx, tx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to report payment: %w", err)
	}
	invalidateTransactions(ctx, s.cache)

	log.Printf("[LedgerService] Payment reported id=%d member=%s amount=%s (pending approval)",
		committed.ID, actor.Identifier, committed.Amount)
	return committed, nil
}

// RecordAdjustment appends a completed adjustment for any member.
// Admin only. Positive amounts raise debt, negative amounts credit.
func (s *LedgerService) RecordAdjustment(ctx context.Context, actor *model.Member, memberID string, amount decimal.Decimal, note string) (model.Transaction, error) {
	if !actor.IsAdmin() {
		return model.Transaction{}, ErrForbidden
	}
	if amount.IsZero() {
		return model.Transaction{}, validationErr("amount", "must not be zero")
	}
	if memberID == "" {
		return model.Transaction{}, validationErr("member_identifier", "is required")
	}

	if _, err := s.members.GetMemberByIdentifier(ctx, memberID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Transaction{}, fmt.Errorf("member %s: %w", memberID, repository.ErrNotFound)
		}
		return model.Transaction{}, fmt.Errorf("failed to look up member: %w", err)
	}

	tx := model.Transaction{
		Timestamp:        time.Now().UTC(),
		MemberIdentifier: memberID,
		Type:             model.TypeAdjustment,
		Amount:           amount,
		Status:           model.StatusCompleted,
		Notes:            note,
	}

	committed, err := s.transactions.AppendTransaction(ctx, tx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to record adjustment: %w", err)
	}
	invalidateTransactions(ctx, s.cache)

	log.Printf("[LedgerService] Adjustment id=%d member=%s amount=%s by %s",
		committed.ID, memberID, committed.Amount, actor.Identifier)
	return committed, nil
}
