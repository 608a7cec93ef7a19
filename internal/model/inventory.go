package model

import "time"

// InventoryDelta is a signed stock-change entry in the append-only
// inventory log. Current stock is always recomputed from the full log
// plus the purchase count, never kept as a running counter.
type InventoryDelta struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Quantity  int64     `json:"quantity"`
}
