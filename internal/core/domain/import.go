// internal/core/domain/import.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DuplicatePolicy selects how import lines matching an existing SKU are
// applied. The policy only disambiguates duplicates; new lines are always
// inserted.
type DuplicatePolicy string

const (
	PolicySkip       DuplicatePolicy = "skip"
	PolicyAddToStock DuplicatePolicy = "add_to_stock"
	PolicyUpdate     DuplicatePolicy = "update"
)

// Valid reports whether the policy is a known variant.
func (p DuplicatePolicy) Valid() bool {
	return p == PolicySkip || p == PolicyAddToStock || p == PolicyUpdate
}

// ImportLine is one proposed row of a bulk import batch. Ephemeral: it only
// exists for the duration of one import run and is never persisted as its
// own entity.
type ImportLine struct {
	RowNumber           int             `json:"row_number"`
	SKU                 string          `json:"sku"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	Category            string          `json:"category,omitempty"`
	PickingBinQuantity  int             `json:"picking_bin_quantity"`
	OverstockQuantity   int             `json:"overstock_quantity"`
	ReorderLevel        int             `json:"reorder_level"`
	PickingReorderLevel int             `json:"picking_reorder_level"`
	UnitCost            decimal.Decimal `json:"unit_cost"`
	RetailPrice         decimal.Decimal `json:"retail_price"`
	Location            string          `json:"location,omitempty"`
	PickingBinLocation  string          `json:"picking_bin_location,omitempty"`
	VendorID            string          `json:"vendor_id,omitempty"`
	BarcodeURL          string          `json:"barcode_url,omitempty"`
	AutoReorderEnabled  bool            `json:"auto_reorder_enabled"`
	AutoReorderQuantity int             `json:"auto_reorder_quantity"`
}

// ToItem materializes the line as a new inventory item for insertion.
func (l *ImportLine) ToItem(orgID uuid.UUID) InventoryItem {
	return InventoryItem{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		SKU:                 l.SKU,
		Name:                l.Name,
		Description:         l.Description,
		Category:            l.Category,
		PickingBinQuantity:  l.PickingBinQuantity,
		OverstockQuantity:   l.OverstockQuantity,
		ReorderLevel:        l.ReorderLevel,
		PickingReorderLevel: l.PickingReorderLevel,
		UnitCost:            l.UnitCost,
		RetailPrice:         l.RetailPrice,
		Location:            l.Location,
		PickingBinLocation:  l.PickingBinLocation,
		VendorID:            l.VendorID,
		BarcodeURL:          l.BarcodeURL,
		AutoReorderEnabled:  l.AutoReorderEnabled,
		AutoReorderQuantity: l.AutoReorderQuantity,
	}
}

// ClassifiedLine pairs an import line with the existing item it duplicates,
// if any.
type ClassifiedLine struct {
	Line     ImportLine `json:"line"`
	Existing *uuid.UUID `json:"existing_item_id,omitempty"`
}

// ImportJobStatus tracks a bulk import run through the confirmation gate.
type ImportJobStatus string

const (
	ImportAwaitingConfirmation ImportJobStatus = "awaiting_confirmation"
	ImportProcessing           ImportJobStatus = "processing"
	ImportCompleted            ImportJobStatus = "completed"
	ImportCancelled            ImportJobStatus = "cancelled"
	ImportFailed               ImportJobStatus = "failed"
)

// ImportPlan is the outcome of the side-effect-free classification and
// location-discovery phases. Persisted with the import job so the operator's
// confirm/cancel round-trip survives process restarts. No ledger writes
// happen while NewLocations is non-empty and unconfirmed.
type ImportPlan struct {
	Lines        []ClassifiedLine `json:"lines"`
	NewLocations []string         `json:"new_locations,omitempty"`
	Policy       DuplicatePolicy  `json:"policy"`
}

// ImportJob is the persisted state of one bulk import run.
type ImportJob struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	FileName       string          `json:"file_name,omitempty"`
	Status         ImportJobStatus `json:"status"`
	Plan           *ImportPlan     `json:"plan,omitempty"`
	Result         *ImportResult   `json:"result,omitempty"`
	RequestedBy    string          `json:"requested_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ImportResult is the aggregate outcome of the commit phase. The batch is
// never atomic as a whole; counts and errors reflect exactly what was
// committed.
type ImportResult struct {
	InsertedCount int      `json:"inserted_count"`
	UpdatedCount  int      `json:"updated_count"`
	SkippedCount  int      `json:"skipped_count"`
	Errors        []string `json:"errors,omitempty"`
}

// RecordError appends a per-line failure without aborting the batch.
func (r *ImportResult) RecordError(rowNumber int, sku string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("row %d (sku %s): %v", rowNumber, sku, err))
}
