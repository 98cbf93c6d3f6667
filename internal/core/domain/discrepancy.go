// internal/core/domain/discrepancy.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LocationType identifies which sub-quantity a physical count targets.
type LocationType string

const (
	LocationPickingBin LocationType = "picking_bin"
	LocationOverstock  LocationType = "overstock"
)

// Valid reports whether the location type is one of the known variants.
func (lt LocationType) Valid() bool {
	return lt == LocationPickingBin || lt == LocationOverstock
}

// DiscrepancyStatus tracks the lifecycle of a recorded discrepancy.
type DiscrepancyStatus string

const (
	DiscrepancyPending  DiscrepancyStatus = "pending"
	DiscrepancyResolved DiscrepancyStatus = "resolved"
)

// DiscrepancyRecord is the durable audit record of a mismatch between the
// system-tracked quantity and a physical count. Immutable once created,
// except for Status which moves pending -> resolved.
type DiscrepancyRecord struct {
	ID               uuid.UUID         `json:"id"`
	OrganizationID   uuid.UUID         `json:"organization_id"`
	ItemID           uuid.UUID         `json:"item_id"`
	LocationString   string            `json:"location_string"`
	LocationType     LocationType      `json:"location_type"`
	OriginalQuantity int               `json:"original_quantity"`
	CountedQuantity  int               `json:"counted_quantity"`
	Difference       int               `json:"difference"`
	Reason           string            `json:"reason,omitempty"`
	ReportedBy       string            `json:"reported_by,omitempty"`
	Status           DiscrepancyStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
}

// NewDiscrepancyRecord builds a pending record. Difference is always
// counted minus original, so shortfalls are negative.
func NewDiscrepancyRecord(item *InventoryItem, locType LocationType, locString string, original, counted int, reason, reportedBy string) DiscrepancyRecord {
	return DiscrepancyRecord{
		ID:               uuid.New(),
		OrganizationID:   item.OrganizationID,
		ItemID:           item.ID,
		LocationString:   locString,
		LocationType:     locType,
		OriginalQuantity: original,
		CountedQuantity:  counted,
		Difference:       counted - original,
		Reason:           reason,
		ReportedBy:       reportedBy,
		Status:           DiscrepancyPending,
		CreatedAt:        time.Now(),
	}
}

// Summary renders the human-readable description attached to the
// notification emitted when the discrepancy is recorded.
func (d *DiscrepancyRecord) Summary(itemName string) string {
	return fmt.Sprintf(
		"Stock discrepancy for %s at %s (%s): counted %d, system had %d (difference %+d). Reported by %s.",
		itemName, d.LocationString, d.LocationType,
		d.CountedQuantity, d.OriginalQuantity, d.Difference, d.ReportedBy,
	)
}

// MovementType classifies stock movement audit entries.
type MovementType string

const (
	MovementAdjustment MovementType = "adjustment"
	MovementImportAdd  MovementType = "import_add"
	MovementInsert     MovementType = "insert"
)

// StockMovement is an append-only audit entry recorded alongside ledger
// mutations that originate from reconciliation or bulk import.
type StockMovement struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	ItemID         uuid.UUID    `json:"item_id"`
	MovementType   MovementType `json:"movement_type"`
	QuantityChange int          `json:"quantity_change"`
	Reason         string       `json:"reason,omitempty"`
	CreatedBy      string       `json:"created_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
