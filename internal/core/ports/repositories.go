// internal/core/ports/repositories.go
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
)

// ItemListParams holds filters for listing inventory items.
type ItemListParams struct {
	OrganizationID uuid.UUID
	Search         string
	Category       string
	Status         domain.ItemStatus
	Location       string
	SortBy         string
	SortOrder      string
	Page           int
	PageSize       int
}

// ItemListResult holds one page of inventory items.
type ItemListResult struct {
	Items      []*domain.InventoryItem `json:"items"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	TotalCount int64                   `json:"total_count"`
	TotalPages int                     `json:"total_pages"`
}

// InventoryRepository is the persistence port for inventory items.
// Implemented by the database adapter.
type InventoryRepository interface {
	Insert(ctx context.Context, item *domain.InventoryItem) error
	// Update persists the item only if the stored version matches
	// item.Version; on success the version is bumped. A version mismatch
	// returns domain.ErrConflict so the ledger can retry.
	Update(ctx context.Context, item *domain.InventoryItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.InventoryItem, error)
	// FindBySKU matches case-insensitively within the organization.
	FindBySKU(ctx context.Context, orgID uuid.UUID, sku string) (*domain.InventoryItem, error)
	FindAll(ctx context.Context, params ItemListParams) ([]*domain.InventoryItem, int64, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// DiscrepancyListParams filters discrepancy listings.
type DiscrepancyListParams struct {
	OrganizationID uuid.UUID
	ItemID         uuid.UUID
	Status         domain.DiscrepancyStatus
	Page           int
	PageSize       int
}

// DiscrepancyRepository persists discrepancy records.
type DiscrepancyRepository interface {
	Insert(ctx context.Context, rec *domain.DiscrepancyRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DiscrepancyRecord, error)
	FindAll(ctx context.Context, params DiscrepancyListParams) ([]*domain.DiscrepancyRecord, int64, error)
	// MarkResolved flips status pending -> resolved. Returns false when the
	// record was not pending (already resolved), which callers treat as a
	// no-op, not an error.
	MarkResolved(ctx context.Context, id uuid.UUID) (bool, error)
	CountPendingOlderThan(ctx context.Context, days int) (int64, error)
}

// RuleRepository reads persisted automation rules. Rules are created and
// edited by an external surface; this core only evaluates them.
type RuleRepository interface {
	// FindActiveByOrganization excludes inactive and foreign-organization
	// rules before evaluation.
	FindActiveByOrganization(ctx context.Context, orgID uuid.UUID) ([]*domain.AutomationRule, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.AutomationRule, error)
	Insert(ctx context.Context, rule *domain.AutomationRule) error
}

// LocationRepository persists storage locations.
type LocationRepository interface {
	Insert(ctx context.Context, loc *domain.Location) error
	// KnownNames returns the normalized (lowercased, trimmed) set of
	// location names for the organization.
	KnownNames(ctx context.Context, orgID uuid.UUID) (map[string]struct{}, error)
	FindAll(ctx context.Context, orgID uuid.UUID) ([]*domain.Location, error)
}

// MovementRepository appends stock movement audit entries.
type MovementRepository interface {
	Insert(ctx context.Context, mv *domain.StockMovement) error
	FindByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]*domain.StockMovement, error)
}

// ImportJobRepository persists bulk import runs across the confirmation
// gate round-trip.
type ImportJobRepository interface {
	Insert(ctx context.Context, job *domain.ImportJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error)
	Update(ctx context.Context, job *domain.ImportJob) error
}
