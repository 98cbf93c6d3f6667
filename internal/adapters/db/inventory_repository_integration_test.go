//go:build integration
// +build integration

package db_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/binwise/binwise-be/internal/adapters/db"
	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
	"github.com/binwise/binwise-be/test/helpers"
)

type InventoryRepositorySuite struct {
	suite.Suite
	testDB *helpers.TestDB
	repo   ports.InventoryRepository
	ctx    context.Context
}

func (s *InventoryRepositorySuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.repo = db.NewInventoryRepository(s.testDB.Database, helpers.TestLogger())
	s.ctx = context.Background()
}

func (s *InventoryRepositorySuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
}

func (s *InventoryRepositorySuite) TestInsertStartsAtVersionOne() {
	item := helpers.CreateTestItem()
	item.PrepareForStorage()

	s.Require().NoError(s.repo.Insert(s.ctx, item))
	s.Equal(int64(1), item.Version)

	found, err := s.repo.FindByID(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	helpers.CompareItems(s.T(), item, found)
}

func (s *InventoryRepositorySuite) TestInsertRejectsDuplicateSKU() {
	item := helpers.CreateTestItem()
	item.PrepareForStorage()
	s.Require().NoError(s.repo.Insert(s.ctx, item))

	dup := helpers.CreateTestItem(func(i *domain.InventoryItem) {
		i.OrganizationID = item.OrganizationID
		i.SKU = item.SKU
	})
	dup.PrepareForStorage()

	err := s.repo.Insert(s.ctx, dup)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrConflict)
}

func (s *InventoryRepositorySuite) TestFindBySKUIsCaseInsensitive() {
	item := helpers.CreateTestItem(func(i *domain.InventoryItem) {
		i.SKU = "CAB-750-001"
	})
	item.PrepareForStorage()
	s.Require().NoError(s.repo.Insert(s.ctx, item))

	found, err := s.repo.FindBySKU(s.ctx, item.OrganizationID, "  cab-750-001 ")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(item.ID, found.ID)

	// Same SKU under a different organization is invisible.
	other, err := s.repo.FindBySKU(s.ctx, uuid.New(), "cab-750-001")
	s.Require().NoError(err)
	s.Nil(other)
}

func (s *InventoryRepositorySuite) TestUpdateBumpsVersion() {
	item := helpers.CreateTestItem()
	item.PrepareForStorage()
	s.Require().NoError(s.repo.Insert(s.ctx, item))

	item.PickingBinQuantity = 7
	s.Require().NoError(s.repo.Update(s.ctx, item))
	s.Equal(int64(2), item.Version)

	found, err := s.repo.FindByID(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(7, found.PickingBinQuantity)
	s.Equal(int64(2), found.Version)
}

func (s *InventoryRepositorySuite) TestUpdateStaleVersionConflicts() {
	item := helpers.CreateTestItem()
	item.PrepareForStorage()
	s.Require().NoError(s.repo.Insert(s.ctx, item))

	stale := *item
	item.OverstockQuantity = 99
	s.Require().NoError(s.repo.Update(s.ctx, item))

	stale.OverstockQuantity = 1
	err := s.repo.Update(s.ctx, &stale)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrConflict)
}

func (s *InventoryRepositorySuite) TestUpdateUnknownItemNotFound() {
	ghost := helpers.CreateTestItem()
	ghost.PrepareForStorage()
	ghost.Version = 1

	err := s.repo.Update(s.ctx, ghost)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *InventoryRepositorySuite) TestFindAllFiltersByStatus() {
	orgID := uuid.New()

	inStock := helpers.CreateTestItem(func(i *domain.InventoryItem) {
		i.OrganizationID = orgID
		i.SKU = "IN-001"
		i.PickingBinQuantity = 20
		i.OverstockQuantity = 40
		i.ReorderLevel = 10
	})
	lowStock := helpers.CreateTestItem(func(i *domain.InventoryItem) {
		i.OrganizationID = orgID
		i.SKU = "LOW-001"
		i.PickingBinQuantity = 2
		i.OverstockQuantity = 3
		i.ReorderLevel = 10
	})
	outOfStock := helpers.CreateTestItem(func(i *domain.InventoryItem) {
		i.OrganizationID = orgID
		i.SKU = "OUT-001"
		i.PickingBinQuantity = 0
		i.OverstockQuantity = 0
	})
	for _, item := range []*domain.InventoryItem{inStock, lowStock, outOfStock} {
		item.PrepareForStorage()
		s.Require().NoError(s.repo.Insert(s.ctx, item))
	}

	items, total, err := s.repo.FindAll(s.ctx, ports.ItemListParams{
		OrganizationID: orgID,
		Status:         domain.StatusLowStock,
		Page:           1,
		PageSize:       50,
	})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(items, 1)
	s.Equal("LOW-001", items[0].SKU)

	items, total, err = s.repo.FindAll(s.ctx, ports.ItemListParams{
		OrganizationID: orgID,
		Page:           1,
		PageSize:       50,
	})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(items, 3)
}

func (s *InventoryRepositorySuite) TestFindAllSearchesNameAndSKU() {
	orgID := uuid.New()
	for i, sku := range []string{"CAB-750-001", "CHD-750-002"} {
		item := helpers.CreateTestItem(func(it *domain.InventoryItem) {
			it.OrganizationID = orgID
			it.SKU = sku
			if i == 0 {
				it.Name = "Cabernet Sauvignon 750ml"
			} else {
				it.Name = "Chardonnay 750ml"
			}
		})
		item.PrepareForStorage()
		s.Require().NoError(s.repo.Insert(s.ctx, item))
	}

	items, total, err := s.repo.FindAll(s.ctx, ports.ItemListParams{
		OrganizationID: orgID,
		Search:         "chard",
		Page:           1,
		PageSize:       50,
	})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(items, 1)
	s.Equal("CHD-750-002", items[0].SKU)
}

func (s *InventoryRepositorySuite) TestFindAllPaginates() {
	orgID := uuid.New()
	items := helpers.CreateTestItems(orgID, 5)
	for i := range items {
		items[i].PrepareForStorage()
		s.Require().NoError(s.repo.Insert(s.ctx, &items[i]))
	}

	page, total, err := s.repo.FindAll(s.ctx, ports.ItemListParams{
		OrganizationID: orgID,
		SortBy:         "sku",
		SortOrder:      "asc",
		Page:           2,
		PageSize:       2,
	})
	s.Require().NoError(err)
	s.Equal(int64(5), total)
	s.Require().Len(page, 2)
	s.Equal("TST-750-003", page[0].SKU)
}

func TestInventoryRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(InventoryRepositorySuite))
}
