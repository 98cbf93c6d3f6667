// internal/core/domain/import_test.go
package domain_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/binwise/binwise-be/internal/core/domain"
)

func TestDuplicatePolicy_Valid(t *testing.T) {
	assert.True(t, domain.PolicySkip.Valid())
	assert.True(t, domain.PolicyAddToStock.Valid())
	assert.True(t, domain.PolicyUpdate.Valid())
	assert.False(t, domain.DuplicatePolicy("merge").Valid())
	assert.False(t, domain.DuplicatePolicy("").Valid())
}

func TestImportLine_ToItem(t *testing.T) {
	orgID := uuid.New()
	line := domain.ImportLine{
		RowNumber:           4,
		SKU:                 "RSL-750-004",
		Name:                "Riesling 750ml",
		Category:            "white",
		PickingBinQuantity:  6,
		OverstockQuantity:   18,
		ReorderLevel:        10,
		PickingReorderLevel: 5,
		UnitCost:            decimal.NewFromFloat(8.75),
		RetailPrice:         decimal.NewFromFloat(17.49),
		Location:            "Warehouse B",
		VendorID:            "coastal-imports",
	}

	item := line.ToItem(orgID)

	assert.Equal(t, orgID, item.OrganizationID)
	assert.Equal(t, "RSL-750-004", item.SKU)
	assert.Equal(t, "Riesling 750ml", item.Name)
	assert.Equal(t, 6, item.PickingBinQuantity)
	assert.Equal(t, 18, item.OverstockQuantity)
	assert.Equal(t, 24, item.TotalQuantity())
	assert.True(t, item.UnitCost.Equal(line.UnitCost))
	assert.Equal(t, "Warehouse B", item.Location)
}

func TestImportResult_RecordError(t *testing.T) {
	var result domain.ImportResult
	result.RecordError(7, "BAD-001", errors.New("insert failed"))
	result.RecordError(9, "BAD-002", errors.New("negative quantity"))

	assert.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "row 7 (sku BAD-001)")
	assert.Contains(t, result.Errors[0], "insert failed")
	assert.Contains(t, result.Errors[1], "row 9 (sku BAD-002)")
}
