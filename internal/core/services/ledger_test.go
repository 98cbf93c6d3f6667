// internal/core/services/ledger_test.go
package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/services"
	"github.com/binwise/binwise-be/test/helpers"
	"github.com/binwise/binwise-be/test/mocks"
)

func newTestLedger(t *testing.T, ctrl *gomock.Controller) (*services.StockLedger, *mocks.MockInventoryRepository, *mocks.MockEventPublisher, *mocks.MockCacheRepository) {
	t.Helper()
	repo := mocks.NewMockInventoryRepository(ctrl)
	publisher := mocks.NewMockEventPublisher(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	ledger := services.NewStockLedger(repo, publisher, cache, 5*time.Second, helpers.TestLogger())
	return ledger, repo, publisher, cache
}

func TestStockLedger_Apply(t *testing.T) {
	item := helpers.CreateTestItem(func(i *domain.InventoryItem) {
		i.PickingBinQuantity = 10
		i.OverstockQuantity = 40
	})

	tests := []struct {
		name          string
		mutate        func(domain.InventoryItem) (domain.InventoryItem, error)
		setupMocks    func(*mocks.MockInventoryRepository, *mocks.MockEventPublisher, *mocks.MockCacheRepository)
		check         func(*testing.T, *domain.InventoryItem, *domain.InventoryItem)
		expectedError error
		errorContains string
	}{
		{
			name: "successful_mutation_publishes_one_event",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				cur.PickingBinQuantity = 7
				return cur, nil
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				fresh := *item
				repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&fresh, nil)
				repo.EXPECT().
					Update(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, written *domain.InventoryItem) error {
						// The real repository returns the bumped version.
						written.Version++
						return nil
					})
				cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
				pub.EXPECT().
					PublishStockChange(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, event domain.StockChangeEvent) error {
						assert.Equal(t, item.ID, event.ItemID)
						assert.Equal(t, domain.StockEventUpdate, event.EventType)
						assert.Equal(t, item.Version+1, event.Sequence)
						assert.Equal(t, 50, event.Old.TotalQuantity())
						assert.Equal(t, 47, event.New.TotalQuantity())
						return nil
					}).
					Times(1)
			},
			check: func(t *testing.T, old, updated *domain.InventoryItem) {
				assert.Equal(t, 10, old.PickingBinQuantity)
				assert.Equal(t, 7, updated.PickingBinQuantity)
				assert.Equal(t, 40, updated.OverstockQuantity)
			},
		},
		{
			name: "identity_fields_survive_hostile_mutation",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				cur.ID = uuid.New()
				cur.OrganizationID = uuid.New()
				cur.SKU = "HACKED-001"
				cur.OverstockQuantity = 35
				return cur, nil
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				fresh := *item
				repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&fresh, nil)
				repo.EXPECT().
					Update(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, written *domain.InventoryItem) error {
						assert.Equal(t, item.ID, written.ID)
						assert.Equal(t, item.OrganizationID, written.OrganizationID)
						assert.Equal(t, item.SKU, written.SKU)
						return nil
					})
				cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
				pub.EXPECT().PublishStockChange(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, old, updated *domain.InventoryItem) {
				assert.Equal(t, item.ID, updated.ID)
				assert.Equal(t, item.SKU, updated.SKU)
				assert.Equal(t, 35, updated.OverstockQuantity)
			},
		},
		{
			name: "negative_picking_bin_rejected_without_write",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				cur.PickingBinQuantity = -1
				return cur, nil
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				fresh := *item
				repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&fresh, nil)
			},
			expectedError: domain.ErrInsufficientStock,
		},
		{
			name: "negative_overstock_rejected_without_write",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				cur.OverstockQuantity -= 100
				return cur, nil
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				fresh := *item
				repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&fresh, nil)
			},
			expectedError: domain.ErrInsufficientStock,
		},
		{
			name: "mutation_error_propagates",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				return cur, errors.New("business rule rejected")
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				fresh := *item
				repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&fresh, nil)
			},
			errorContains: "business rule rejected",
		},
		{
			name: "unknown_item_returns_not_found",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				return cur, nil
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(nil, nil)
			},
			expectedError: domain.ErrNotFound,
		},
		{
			name: "version_conflict_retries_and_succeeds",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				cur.PickingBinQuantity++
				return cur, nil
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				first := *item
				second := *item
				second.Version = item.Version + 1
				gomock.InOrder(
					repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&first, nil),
					repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(domain.ErrConflict),
					repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&second, nil),
					repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil),
				)
				cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
				pub.EXPECT().PublishStockChange(gomock.Any(), gomock.Any()).Return(nil).Times(1)
			},
		},
		{
			name: "version_conflict_exhausts_retries",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				cur.PickingBinQuantity++
				return cur, nil
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				fresh := *item
				repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&fresh, nil).Times(3)
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(domain.ErrConflict).Times(3)
			},
			errorContains: "write contention not resolved",
		},
		{
			name: "publish_failure_does_not_fail_the_write",
			mutate: func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				cur.OverstockQuantity = 30
				return cur, nil
			},
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher, cache *mocks.MockCacheRepository) {
				fresh := *item
				repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(&fresh, nil)
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
				pub.EXPECT().PublishStockChange(gomock.Any(), gomock.Any()).Return(errors.New("queue down"))
			},
			check: func(t *testing.T, old, updated *domain.InventoryItem) {
				assert.Equal(t, 30, updated.OverstockQuantity)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			ledger, repo, publisher, cache := newTestLedger(t, ctrl)
			tt.setupMocks(repo, publisher, cache)

			old, updated, err := ledger.Apply(context.Background(), item.ID, tt.mutate)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, updated)
				return
			}
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, old)
			require.NotNil(t, updated)
			if tt.check != nil {
				tt.check(t, old, updated)
			}
		})
	}
}

func TestStockLedger_Apply_SerializesConcurrentWriters(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	item := helpers.CreateTestItem(func(i *domain.InventoryItem) {
		i.PickingBinQuantity = 0
		i.OverstockQuantity = 0
	})

	// The shared counter stands in for the database row. Each FindByID reads
	// it and each Update writes it back; without per-item serialization the
	// read-modify-write pairs would interleave and lose increments.
	var mu sync.Mutex
	stored := 0

	repo := mocks.NewMockInventoryRepository(ctrl)
	publisher := mocks.NewMockEventPublisher(ctrl)

	const writers = 20

	repo.EXPECT().
		FindByID(gomock.Any(), item.ID).
		DoAndReturn(func(context.Context, uuid.UUID) (*domain.InventoryItem, error) {
			mu.Lock()
			defer mu.Unlock()
			cur := *item
			cur.OverstockQuantity = stored
			return &cur, nil
		}).
		Times(writers)
	repo.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, written *domain.InventoryItem) error {
			mu.Lock()
			defer mu.Unlock()
			stored = written.OverstockQuantity
			return nil
		}).
		Times(writers)
	publisher.EXPECT().PublishStockChange(gomock.Any(), gomock.Any()).Return(nil).Times(writers)

	ledger := services.NewStockLedger(repo, publisher, nil, 5*time.Second, helpers.TestLogger())

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := ledger.Apply(context.Background(), item.ID, func(cur domain.InventoryItem) (domain.InventoryItem, error) {
				cur.OverstockQuantity++
				return cur, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, writers, stored)
}

func TestStockLedger_Insert(t *testing.T) {
	tests := []struct {
		name          string
		item          *domain.InventoryItem
		setupMocks    func(*mocks.MockInventoryRepository, *mocks.MockEventPublisher)
		expectedError error
	}{
		{
			name: "successful_insert_publishes_zero_old_snapshot",
			item: helpers.CreateTestItem(func(i *domain.InventoryItem) {
				i.PickingBinQuantity = 5
				i.OverstockQuantity = 20
			}),
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher) {
				repo.EXPECT().FindBySKU(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
				repo.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, written *domain.InventoryItem) error {
						written.Version = 1
						return nil
					})
				pub.EXPECT().
					PublishStockChange(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, event domain.StockChangeEvent) error {
						assert.Equal(t, domain.StockEventInsert, event.EventType)
						assert.Equal(t, int64(1), event.Sequence)
						assert.Equal(t, 0, event.Old.TotalQuantity())
						assert.Equal(t, 25, event.New.TotalQuantity())
						assert.Equal(t, event.Old.ID, event.New.ID)
						return nil
					})
			},
		},
		{
			name: "invalid_item_rejected",
			item: helpers.CreateTestItem(func(i *domain.InventoryItem) {
				i.SKU = "  "
			}),
			setupMocks:    func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher) {},
			expectedError: domain.ErrInvalidArgument,
		},
		{
			name: "duplicate_sku_rejected",
			item: helpers.CreateTestItem(),
			setupMocks: func(repo *mocks.MockInventoryRepository, pub *mocks.MockEventPublisher) {
				repo.EXPECT().
					FindBySKU(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(helpers.CreateTestItem(), nil)
			},
			expectedError: domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mocks.NewMockInventoryRepository(ctrl)
			publisher := mocks.NewMockEventPublisher(ctrl)
			tt.setupMocks(repo, publisher)

			ledger := services.NewStockLedger(repo, publisher, nil, 5*time.Second, helpers.TestLogger())
			err := ledger.Insert(context.Background(), tt.item)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStockLedger_Get(t *testing.T) {
	item := helpers.CreateTestItem()

	t.Run("cache_miss_reads_repo_and_caches", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ledger, repo, _, cache := newTestLedger(t, ctrl)
		cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("cache miss"))
		repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(item, nil)
		cache.EXPECT().SetWithTTL(gomock.Any(), gomock.Any(), item, gomock.Any()).Return(nil)

		got, err := ledger.Get(context.Background(), item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.SKU, got.SKU)
	})

	t.Run("unknown_item_returns_not_found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ledger, repo, _, cache := newTestLedger(t, ctrl)
		cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("cache miss"))
		repo.EXPECT().FindByID(gomock.Any(), item.ID).Return(nil, nil)

		_, err := ledger.Get(context.Background(), item.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
