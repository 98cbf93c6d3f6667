// internal/core/ports/ledger.go
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
)

// Mutation is a pure function from the current snapshot to the desired
// next state. It must not retain the input pointer; the ledger passes a
// copy and persists the returned value after invariant checks.
type Mutation func(domain.InventoryItem) (domain.InventoryItem, error)

// StockLedger owns the authoritative per-item sub-quantities. Apply is the
// only sanctioned write path for existing items: it is atomic per item,
// serializes concurrent callers for the same item, and publishes exactly
// one change event carrying the (old, new) snapshot pair on success.
type StockLedger interface {
	Get(ctx context.Context, itemID uuid.UUID) (*domain.InventoryItem, error)
	Apply(ctx context.Context, itemID uuid.UUID, mutate Mutation) (old, updated *domain.InventoryItem, err error)
	// Insert creates a new item and publishes an insert event.
	Insert(ctx context.Context, item *domain.InventoryItem) error
}
