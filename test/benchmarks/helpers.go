// test/benchmarks/helpers.go
package benchmarks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

// memoryInventoryRepository keeps items in a mutex-guarded map so ledger
// benchmarks measure service overhead rather than network round trips.
// Update enforces the same optimistic-version contract as the database
// adapter.
type memoryInventoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.InventoryItem
}

func newMemoryInventoryRepository() *memoryInventoryRepository {
	return &memoryInventoryRepository{items: make(map[uuid.UUID]domain.InventoryItem)}
}

func (r *memoryInventoryRepository) Insert(_ context.Context, item *domain.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.OrganizationID == item.OrganizationID && strings.EqualFold(existing.SKU, item.SKU) {
			return fmt.Errorf("sku %q already exists: %w", item.SKU, domain.ErrConflict)
		}
	}
	item.Version = 1
	r.items[item.ID] = *item
	return nil
}

func (r *memoryInventoryRepository) Update(_ context.Context, item *domain.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[item.ID]
	if !ok {
		return fmt.Errorf("item %s: %w", item.ID, domain.ErrNotFound)
	}
	if stored.Version != item.Version {
		return fmt.Errorf("item %s version %d is stale: %w", item.ID, item.Version, domain.ErrConflict)
	}
	item.Version++
	r.items[item.ID] = *item
	return nil
}

func (r *memoryInventoryRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	item := stored
	return &item, nil
}

func (r *memoryInventoryRepository) FindBySKU(_ context.Context, orgID uuid.UUID, sku string) (*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := strings.TrimSpace(strings.ToLower(sku))
	for _, stored := range r.items {
		if stored.OrganizationID == orgID && strings.ToLower(stored.SKU) == normalized {
			item := stored
			return &item, nil
		}
	}
	return nil, nil
}

func (r *memoryInventoryRepository) FindAll(_ context.Context, params ports.ItemListParams) ([]*domain.InventoryItem, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*domain.InventoryItem
	for _, stored := range r.items {
		if stored.OrganizationID != params.OrganizationID {
			continue
		}
		item := stored
		items = append(items, &item)
	}
	return items, int64(len(items)), nil
}

func (r *memoryInventoryRepository) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[id]
	return ok, nil
}

// noopEventPublisher discards stock change events.
type noopEventPublisher struct{}

func (noopEventPublisher) PublishStockChange(context.Context, domain.StockChangeEvent) error {
	return nil
}

// noopNotifier discards notification events.
type noopNotifier struct{}

func (noopNotifier) PublishNotification(context.Context, domain.NotificationEvent) error {
	return nil
}

// staticRuleRepository serves a fixed rule set.
type staticRuleRepository struct {
	rules []*domain.AutomationRule
}

func (r *staticRuleRepository) FindActiveByOrganization(context.Context, uuid.UUID) ([]*domain.AutomationRule, error) {
	return r.rules, nil
}

func (r *staticRuleRepository) FindByID(context.Context, uuid.UUID) (*domain.AutomationRule, error) {
	return nil, nil
}

func (r *staticRuleRepository) Insert(context.Context, *domain.AutomationRule) error {
	return nil
}

// createLargeCSV builds a synthetic stock file with the standard header
// and numRows data rows.
func createLargeCSV(numRows int) []byte {
	var content strings.Builder
	content.WriteString("sku,name,category,picking_bin_quantity,overstock_quantity,reorder_level,unit_cost,retail_price,location,picking_bin_location\n")

	names := []string{
		"Cabernet Sauvignon 750ml",
		"Chardonnay 750ml",
		"Pinot Noir 750ml",
		"Riesling 750ml",
		"Syrah 750ml",
		"Sauvignon Blanc 750ml",
		"Malbec 750ml",
		"Grenache 750ml",
	}
	categories := []string{"red", "white", "rose", "sparkling"}

	for i := 0; i < numRows; i++ {
		content.WriteString(fmt.Sprintf("BNC-750-%05d,%s,%s,%d,%d,%d,%.2f,%.2f,Warehouse %c,Bin %c-%02d\n",
			i,
			names[i%len(names)],
			categories[i%len(categories)],
			i%24,
			(i*3)%96,
			12,
			8.50+float64(i%10),
			19.99+float64(i%10),
			'A'+rune(i%4),
			'A'+rune(i%4),
			i%50,
		))
	}

	return []byte(content.String())
}
