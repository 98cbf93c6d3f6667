// internal/core/services/inventory.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

const dashboardCacheTTL = 2 * time.Minute

// InventoryService is the read/query surface over the stock ledger. All
// writes still flow through the ledger; this service adds listing, single
// reads and the cached dashboard summary.
type InventoryService struct {
	ledger    ports.StockLedger
	repo      ports.InventoryRepository
	movements ports.MovementRepository
	cache     ports.CacheRepository
	logger    *slog.Logger
}

// NewInventoryService creates a new inventory query service.
func NewInventoryService(ledger ports.StockLedger, repo ports.InventoryRepository, movements ports.MovementRepository, cache ports.CacheRepository, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		ledger:    ledger,
		repo:      repo,
		movements: movements,
		cache:     cache,
		logger:    logger.With(slog.String("service", "inventory")),
	}
}

// Get returns the current item snapshot.
func (s *InventoryService) Get(ctx context.Context, itemID uuid.UUID) (*domain.InventoryItem, error) {
	return s.ledger.Get(ctx, itemID)
}

// Create inserts a new item through the ledger.
func (s *InventoryService) Create(ctx context.Context, item *domain.InventoryItem) error {
	return s.ledger.Insert(ctx, item)
}

// List returns one page of items matching the filters.
func (s *InventoryService) List(ctx context.Context, params ports.ItemListParams) (*ports.ItemListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 200 {
		params.PageSize = 50
	}

	items, total, err := s.repo.FindAll(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	totalPages := int(total) / params.PageSize
	if int(total)%params.PageSize > 0 {
		totalPages++
	}

	return &ports.ItemListResult{
		Items:      items,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// Movements returns the most recent movement audit entries for an item.
func (s *InventoryService) Movements(ctx context.Context, itemID uuid.UUID, limit int) ([]*domain.StockMovement, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	mvs, err := s.movements.FindByItem(ctx, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load movements for %s: %w", itemID, err)
	}
	return mvs, nil
}

// DashboardSummary aggregates stock health counters for the organization.
type DashboardSummary struct {
	TotalItems      int64     `json:"total_items"`
	InStockItems    int64     `json:"in_stock_items"`
	LowStockItems   int64     `json:"low_stock_items"`
	OutOfStockItems int64     `json:"out_of_stock_items"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Dashboard returns the organization's stock summary, cached briefly because
// the underlying counts walk the whole item table.
func (s *InventoryService) Dashboard(ctx context.Context, orgID uuid.UUID) (*DashboardSummary, error) {
	key := "dashboard:summary:" + orgID.String()

	var summary DashboardSummary
	err := s.cache.GetOrSet(ctx, key, &summary, func() (interface{}, error) {
		return s.buildDashboard(ctx, orgID)
	}, dashboardCacheTTL)
	if err != nil {
		// Cache trouble should not take the dashboard down.
		s.logger.WarnContext(ctx, "dashboard cache unavailable, computing directly",
			slog.String("error", err.Error()))
		fresh, buildErr := s.buildDashboard(ctx, orgID)
		if buildErr != nil {
			return nil, buildErr
		}
		return fresh, nil
	}
	return &summary, nil
}

func (s *InventoryService) buildDashboard(ctx context.Context, orgID uuid.UUID) (*DashboardSummary, error) {
	summary := &DashboardSummary{GeneratedAt: time.Now()}

	page := 1
	for {
		items, total, err := s.repo.FindAll(ctx, ports.ItemListParams{
			OrganizationID: orgID,
			Page:           page,
			PageSize:       200,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build dashboard: %w", err)
		}
		summary.TotalItems = total

		for _, item := range items {
			switch item.Status() {
			case domain.StatusOutOfStock:
				summary.OutOfStockItems++
			case domain.StatusLowStock:
				summary.LowStockItems++
			default:
				summary.InStockItems++
			}
		}

		if len(items) < 200 {
			break
		}
		page++
	}

	return summary, nil
}
