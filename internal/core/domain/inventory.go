// internal/core/domain/inventory.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus is derived from quantities, never stored as independent truth.
type ItemStatus string

const (
	StatusInStock    ItemStatus = "in_stock"
	StatusLowStock   ItemStatus = "low_stock"
	StatusOutOfStock ItemStatus = "out_of_stock"
)

// InventoryItem tracks stock split across a forward picking bin and an
// overstock reserve. The total quantity is always derived from the two
// sub-quantities and is never persisted on its own.
type InventoryItem struct {
	ID                  uuid.UUID       `json:"id"`
	OrganizationID      uuid.UUID       `json:"organization_id"`
	SKU                 string          `json:"sku"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	Category            string          `json:"category,omitempty"`
	PickingBinQuantity  int             `json:"picking_bin_quantity"`
	OverstockQuantity   int             `json:"overstock_quantity"`
	ReorderLevel        int             `json:"reorder_level"`
	PickingReorderLevel int             `json:"picking_reorder_level"`
	AutoReorderEnabled  bool            `json:"auto_reorder_enabled"`
	AutoReorderQuantity int             `json:"auto_reorder_quantity"`
	UnitCost            decimal.Decimal `json:"unit_cost"`
	RetailPrice         decimal.Decimal `json:"retail_price"`
	Location            string          `json:"location,omitempty"`
	PickingBinLocation  string          `json:"picking_bin_location,omitempty"`
	VendorID            string          `json:"vendor_id,omitempty"`
	BarcodeURL          string          `json:"barcode_url,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TotalQuantity is the derived on-hand quantity across both locations.
func (i *InventoryItem) TotalQuantity() int {
	return i.PickingBinQuantity + i.OverstockQuantity
}

// Status derives stock status from the total quantity and reorder level.
func (i *InventoryItem) Status() ItemStatus {
	total := i.TotalQuantity()
	switch {
	case total == 0:
		return StatusOutOfStock
	case total <= i.ReorderLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// NormalizedSKU returns the SKU form used for duplicate detection.
func (i *InventoryItem) NormalizedSKU() string {
	return NormalizeSKU(i.SKU)
}

// NormalizeSKU lowercases and trims a SKU for case-insensitive matching.
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

// Validate performs domain validation on the inventory item
func (i *InventoryItem) Validate() error {
	if strings.TrimSpace(i.SKU) == "" {
		return fmt.Errorf("sku is required")
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if i.OrganizationID == uuid.Nil {
		return fmt.Errorf("organization_id is required")
	}
	if i.PickingBinQuantity < 0 {
		return fmt.Errorf("picking_bin_quantity cannot be negative")
	}
	if i.OverstockQuantity < 0 {
		return fmt.Errorf("overstock_quantity cannot be negative")
	}
	if i.ReorderLevel < 0 || i.PickingReorderLevel < 0 {
		return fmt.Errorf("reorder levels cannot be negative")
	}
	if i.AutoReorderEnabled && i.AutoReorderQuantity <= 0 {
		return fmt.Errorf("auto_reorder_quantity must be positive when auto reorder is enabled")
	}
	if i.UnitCost.IsNegative() {
		return fmt.Errorf("unit_cost cannot be negative")
	}
	if i.RetailPrice.IsNegative() {
		return fmt.Errorf("retail_price cannot be negative")
	}
	return nil
}

// PrepareForStorage prepares the item for database storage
func (i *InventoryItem) PrepareForStorage() {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}

	i.SKU = strings.TrimSpace(i.SKU)

	now := time.Now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

// Location is a named storage area. Name is the canonical key referenced by
// inventory items; Zone/Aisle/Shelf are structural parts that default to
// placeholders when a location is auto-created from an import confirmation.
type Location struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Zone           string    `json:"zone,omitempty"`
	Aisle          string    `json:"aisle,omitempty"`
	Shelf          string    `json:"shelf,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewPlaceholderLocation builds a location row for a name discovered during
// bulk import and confirmed by the operator.
func NewPlaceholderLocation(orgID uuid.UUID, name string) Location {
	return Location{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(name),
		Zone:           "unzoned",
		CreatedAt:      time.Now(),
	}
}

// NormalizeLocation lowercases and trims a location name for matching.
func NormalizeLocation(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
