// internal/core/services/ledger.go
package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

const (
	ledgerLockStripes  = 256
	ledgerWriteRetries = 3
	snapshotCacheTTL   = 5 * time.Minute
)

// StockLedger owns the authoritative per-item sub-quantities. All writes to
// existing items flow through Apply, which serializes concurrent callers per
// item and publishes exactly one change event per committed write.
type StockLedger struct {
	repo         ports.InventoryRepository
	publisher    ports.EventPublisher
	cache        ports.CacheRepository
	logger       *slog.Logger
	writeTimeout time.Duration

	// Striped per-item locks. Two items may share a stripe and contend
	// needlessly, but a stripe never splits one item across locks, which is
	// the property correctness depends on.
	locks [ledgerLockStripes]sync.Mutex
}

// Statically assert that *StockLedger implements the StockLedger port.
var _ ports.StockLedger = (*StockLedger)(nil)

// NewStockLedger creates a new stock ledger service.
func NewStockLedger(repo ports.InventoryRepository, publisher ports.EventPublisher, cache ports.CacheRepository, writeTimeout time.Duration, logger *slog.Logger) *StockLedger {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &StockLedger{
		repo:         repo,
		publisher:    publisher,
		cache:        cache,
		logger:       logger.With(slog.String("service", "stock_ledger")),
		writeTimeout: writeTimeout,
	}
}

func (l *StockLedger) lockFor(itemID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(itemID[:])
	return &l.locks[h.Sum32()%ledgerLockStripes]
}

func snapshotCacheKey(itemID uuid.UUID) string {
	return "item:snapshot:" + itemID.String()
}

// Get retrieves the current snapshot, read-through cached.
func (l *StockLedger) Get(ctx context.Context, itemID uuid.UUID) (*domain.InventoryItem, error) {
	if l.cache != nil {
		var cached domain.InventoryItem
		if err := l.cache.Get(ctx, snapshotCacheKey(itemID), &cached); err == nil {
			return &cached, nil
		}
	}

	item, err := l.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read item %s: %w", itemID, err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}

	if l.cache != nil {
		if err := l.cache.SetWithTTL(ctx, snapshotCacheKey(itemID), item, snapshotCacheTTL); err != nil {
			l.logger.DebugContext(ctx, "snapshot cache set failed",
				slog.String("item_id", itemID.String()),
				slog.String("error", err.Error()))
		}
	}

	return item, nil
}

// Apply runs the mutation against the current snapshot under the item's
// lock and persists the result. Identity, SKU and organization are
// immutable through Apply; a mutation that would drive either sub-quantity
// negative is rejected with ErrInsufficientStock and nothing is written.
// On success exactly one change event carrying (old, new) is published.
func (l *StockLedger) Apply(ctx context.Context, itemID uuid.UUID, mutate ports.Mutation) (*domain.InventoryItem, *domain.InventoryItem, error) {
	mu := l.lockFor(itemID)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()

	// The in-process lock serializes local writers; the version check in
	// Update catches writers in other processes. Conflicts re-read and
	// retry a bounded number of times.
	var lastErr error
	for attempt := 0; attempt < ledgerWriteRetries; attempt++ {
		current, err := l.repo.FindByID(ctx, itemID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read item %s: %w", itemID, err)
		}
		if current == nil {
			return nil, nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
		}

		old := *current

		mutated, err := mutate(*current)
		if err != nil {
			return nil, nil, err
		}

		// Identity never changes through Apply.
		mutated.ID = old.ID
		mutated.OrganizationID = old.OrganizationID
		mutated.SKU = old.SKU
		mutated.Version = old.Version
		mutated.CreatedAt = old.CreatedAt
		mutated.UpdatedAt = time.Now()

		if mutated.PickingBinQuantity < 0 || mutated.OverstockQuantity < 0 {
			return nil, nil, fmt.Errorf(
				"item %s: picking_bin=%d overstock=%d: %w",
				itemID, mutated.PickingBinQuantity, mutated.OverstockQuantity,
				domain.ErrInsufficientStock)
		}

		if err := l.repo.Update(ctx, &mutated); err != nil {
			if isConflict(err) {
				lastErr = err
				continue
			}
			return nil, nil, fmt.Errorf("failed to write item %s: %w", itemID, err)
		}

		l.invalidate(ctx, itemID)
		l.publish(ctx, domain.StockChangeEvent{
			ItemID:         itemID,
			OrganizationID: mutated.OrganizationID,
			Sequence:       mutated.Version,
			Old:            old.Snapshot(),
			New:            mutated.Snapshot(),
			EventType:      domain.StockEventUpdate,
			OccurredAt:     mutated.UpdatedAt,
		})

		l.logger.DebugContext(ctx, "ledger mutation applied",
			slog.String("item_id", itemID.String()),
			slog.Int("old_total", old.TotalQuantity()),
			slog.Int("new_total", mutated.TotalQuantity()))

		return &old, &mutated, nil
	}

	return nil, nil, fmt.Errorf("item %s: write contention not resolved after %d attempts: %w",
		itemID, ledgerWriteRetries, lastErr)
}

// Insert creates a new item and publishes an insert event whose old
// snapshot carries zero quantities for the same item.
func (l *StockLedger) Insert(ctx context.Context, item *domain.InventoryItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrInvalidArgument)
	}
	item.PrepareForStorage()

	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()

	existing, err := l.repo.FindBySKU(ctx, item.OrganizationID, item.SKU)
	if err != nil {
		return fmt.Errorf("failed to check sku %q: %w", item.SKU, err)
	}
	if existing != nil {
		return fmt.Errorf("sku %q already exists: %w", item.SKU, domain.ErrConflict)
	}

	if err := l.repo.Insert(ctx, item); err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	zero := item.Snapshot()
	zero.PickingBinQuantity = 0
	zero.OverstockQuantity = 0

	l.publish(ctx, domain.StockChangeEvent{
		ItemID:         item.ID,
		OrganizationID: item.OrganizationID,
		Sequence:       item.Version,
		Old:            zero,
		New:            item.Snapshot(),
		EventType:      domain.StockEventInsert,
		OccurredAt:     item.CreatedAt,
	})

	l.logger.InfoContext(ctx, "inventory item inserted",
		slog.String("item_id", item.ID.String()),
		slog.String("sku", item.SKU))

	return nil
}

func (l *StockLedger) invalidate(ctx context.Context, itemID uuid.UUID) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, snapshotCacheKey(itemID)); err != nil {
		l.logger.DebugContext(ctx, "snapshot cache invalidation failed",
			slog.String("item_id", itemID.String()),
			slog.String("error", err.Error()))
	}
}

// publish hands the event to the dispatch adapter. The write has already
// committed, so a publish failure is logged for operator attention instead
// of failing the caller.
func (l *StockLedger) publish(ctx context.Context, event domain.StockChangeEvent) {
	if err := l.publisher.PublishStockChange(ctx, event); err != nil {
		l.logger.ErrorContext(ctx, "failed to publish stock change event",
			slog.String("item_id", event.ItemID.String()),
			slog.String("event_type", string(event.EventType)),
			slog.String("error", err.Error()))
	}
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}
