package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"sodaclub-ledger-api/internal/ledger"
	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/repository"

	"github.com/shopspring/decimal"
)

// defaultUnitPrice is the fallback when the unit_price setting is
// absent or unreadable. Matches the price the club charged before the
// setting existed.
const defaultUnitPrice = "2.5"

// RegistryService manages the price setting and the stock-delta log.
type RegistryService struct {
	settings     repository.SettingRepository
	inventory    repository.InventoryRepository
	transactions repository.TransactionRepository
}

// NewRegistryService creates a new settings/inventory registry.
func NewRegistryService(
	settings repository.SettingRepository,
	inventory repository.InventoryRepository,
	transactions repository.TransactionRepository,
) *RegistryService {
	return &RegistryService{
		settings:     settings,
		inventory:    inventory,
		transactions: transactions,
	}
}

// UnitPrice returns the current unit price. A missing or malformed
// setting row falls back to the default instead of failing the caller;
// a broken price setting must never make purchases impossible.
func (s *RegistryService) UnitPrice(ctx context.Context) decimal.Decimal {
	fallback := decimal.RequireFromString(defaultUnitPrice)

	raw, err := s.settings.GetSetting(ctx, model.SettingUnitPrice)
	if err != nil {
		return fallback
	}

	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || price.Sign() <= 0 {
		log.Printf("[RegistryService] Malformed unit_price %q, using default %s", raw, defaultUnitPrice)
		return fallback
	}
	return price
}

// SetUnitPrice upserts the unit price setting. Admin only.
func (s *RegistryService) SetUnitPrice(ctx context.Context, actor *model.Member, price decimal.Decimal) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if price.Sign() <= 0 {
		return validationErr("price", "must be greater than zero")
	}

	if err := s.settings.UpsertSetting(ctx, model.SettingUnitPrice, price.String()); err != nil {
		return fmt.Errorf("failed to set unit price: %w", err)
	}
	log.Printf("[RegistryService] Unit price set to %s by %s", price, actor.Identifier)
	return nil
}

// AddStock appends a stock delta. Admin only. Positive deltas restock;
// negative deltas correct counting mistakes. Zero is rejected.
func (s *RegistryService) AddStock(ctx context.Context, actor *model.Member, quantity int64) (model.InventoryDelta, error) {
	if !actor.IsAdmin() {
		return model.InventoryDelta{}, ErrForbidden
	}
	if quantity == 0 {
		return model.InventoryDelta{}, validationErr("quantity", "must not be zero")
	}

	delta, err := s.inventory.AppendInventoryDelta(ctx, quantity)
	if err != nil {
		return model.InventoryDelta{}, fmt.Errorf("failed to record inventory delta: %w", err)
	}
	log.Printf("[RegistryService] Inventory delta %+d recorded by %s", quantity, actor.Identifier)
	return delta, nil
}

// Stock recomputes current stock from the full delta log and purchase
// count. No running counter is stored anywhere.
func (s *RegistryService) Stock(ctx context.Context) (int64, error) {
	deltas, err := s.inventory.ListInventoryDeltas(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list inventory deltas: %w", err)
	}
	txs, err := s.transactions.ListTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return ledger.CurrentStock(deltas, txs), nil
}
