// internal/core/domain/events.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// StockEventType distinguishes first writes from updates.
type StockEventType string

const (
	StockEventInsert StockEventType = "insert"
	StockEventUpdate StockEventType = "update"
)

// ItemSnapshot is the immutable view of an item carried on change events.
// For insert events Old is a zero-quantity snapshot of the same item.
type ItemSnapshot struct {
	ID                 uuid.UUID `json:"id"`
	OrganizationID     uuid.UUID `json:"organization_id"`
	SKU                string    `json:"sku"`
	Name               string    `json:"name"`
	PickingBinQuantity int       `json:"picking_bin_quantity"`
	OverstockQuantity  int       `json:"overstock_quantity"`
	ReorderLevel       int       `json:"reorder_level"`
	Location           string    `json:"location,omitempty"`
	PickingBinLocation string    `json:"picking_bin_location,omitempty"`
}

// TotalQuantity mirrors InventoryItem.TotalQuantity for snapshots.
func (s *ItemSnapshot) TotalQuantity() int {
	return s.PickingBinQuantity + s.OverstockQuantity
}

// Snapshot captures the event-facing view of an item.
func (i *InventoryItem) Snapshot() ItemSnapshot {
	return ItemSnapshot{
		ID:                 i.ID,
		OrganizationID:     i.OrganizationID,
		SKU:                i.SKU,
		Name:               i.Name,
		PickingBinQuantity: i.PickingBinQuantity,
		OverstockQuantity:  i.OverstockQuantity,
		ReorderLevel:       i.ReorderLevel,
		Location:           i.Location,
		PickingBinLocation: i.PickingBinLocation,
	}
}

// StockChangeEvent is published exactly once per successful ledger write.
// The contract is the (old, new) pair; the transport is an adapter concern.
// Sequence carries the item's version at commit time. Versions bump by one
// on every write, so consumers can restore per-item commit order even when
// the transport delivers concurrently or retries out of order.
type StockChangeEvent struct {
	ItemID         uuid.UUID      `json:"item_id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	Sequence       int64          `json:"sequence"`
	Old            ItemSnapshot   `json:"old"`
	New            ItemSnapshot   `json:"new"`
	EventType      StockEventType `json:"event_type"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// NotificationEvent is published to the external notification/activity-log
// collaborator.
type NotificationEvent struct {
	OrganizationID uuid.UUID      `json:"organization_id"`
	ActivityType   string         `json:"activity_type"`
	Description    string         `json:"description"`
	Details        map[string]any `json:"details,omitempty"`
}

// Activity types emitted by the core.
const (
	ActivityDiscrepancyReported = "discrepancy_reported"
	ActivityAutomationTriggered = "automation_triggered"
	ActivityImportCompleted     = "import_completed"
)
