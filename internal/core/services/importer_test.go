// internal/core/services/importer_test.go
package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
	"github.com/binwise/binwise-be/internal/core/services"
	"github.com/binwise/binwise-be/test/helpers"
	"github.com/binwise/binwise-be/test/mocks"
)

type importMocks struct {
	ledger    *mocks.MockStockLedger
	inventory *mocks.MockInventoryRepository
	locations *mocks.MockLocationRepository
	jobs      *mocks.MockImportJobRepository
	movements *mocks.MockMovementRepository
	notifier  *mocks.MockNotificationPublisher
}

func newImportService(t *testing.T, ctrl *gomock.Controller) (*services.ImportService, *importMocks) {
	t.Helper()
	m := &importMocks{
		ledger:    mocks.NewMockStockLedger(ctrl),
		inventory: mocks.NewMockInventoryRepository(ctrl),
		locations: mocks.NewMockLocationRepository(ctrl),
		jobs:      mocks.NewMockImportJobRepository(ctrl),
		movements: mocks.NewMockMovementRepository(ctrl),
		notifier:  mocks.NewMockNotificationPublisher(ctrl),
	}
	svc := services.NewImportService(m.ledger, m.inventory, m.locations, m.jobs, m.movements, m.notifier, helpers.TestLogger())
	return svc, m
}

func TestImportService_Classify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orgID := uuid.New()
	existing := helpers.CreateTestItem(func(i *domain.InventoryItem) {
		i.OrganizationID = orgID
		i.SKU = "CAB-750-001"
	})

	lines := []domain.ImportLine{
		helpers.CreateTestImportLine(func(l *domain.ImportLine) {
			l.RowNumber = 2
			l.SKU = "cab-750-001"
		}),
		helpers.CreateTestImportLine(func(l *domain.ImportLine) {
			l.RowNumber = 3
			l.SKU = "NEW-750-009"
		}),
		helpers.CreateTestImportLine(func(l *domain.ImportLine) {
			// No lookup for a blank SKU; commit rejects the line instead.
			l.RowNumber = 4
			l.SKU = "   "
		}),
	}

	svc, m := newImportService(t, ctrl)
	m.inventory.EXPECT().FindBySKU(gomock.Any(), orgID, "cab-750-001").Return(existing, nil)
	m.inventory.EXPECT().FindBySKU(gomock.Any(), orgID, "NEW-750-009").Return(nil, nil)

	classified, err := svc.Classify(context.Background(), orgID, lines)
	require.NoError(t, err)
	require.Len(t, classified, 3)
	require.NotNil(t, classified[0].Existing)
	assert.Equal(t, existing.ID, *classified[0].Existing)
	assert.Nil(t, classified[1].Existing)
	assert.Nil(t, classified[2].Existing)
}

func TestImportService_DiscoverNewLocations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orgID := uuid.New()

	lines := []domain.ImportLine{
		helpers.CreateTestImportLine(func(l *domain.ImportLine) {
			l.Location = "Warehouse A"
			l.PickingBinLocation = "Bin Z-99"
		}),
		helpers.CreateTestImportLine(func(l *domain.ImportLine) {
			// Repeat with different casing must not surface twice.
			l.Location = "BIN Z-99"
			l.PickingBinLocation = ""
		}),
		helpers.CreateTestImportLine(func(l *domain.ImportLine) {
			l.Location = "Cellar North"
			l.PickingBinLocation = "  "
		}),
		helpers.CreateTestImportLine(func(l *domain.ImportLine) {
			// A line commit will reject must not gate the batch.
			l.Name = ""
			l.Location = "Ghost Cellar"
		}),
	}

	svc, m := newImportService(t, ctrl)
	m.locations.EXPECT().KnownNames(gomock.Any(), orgID).Return(map[string]struct{}{
		"warehouse a": {},
	}, nil)

	discovered, err := svc.DiscoverNewLocations(context.Background(), orgID, lines)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bin Z-99", "Cellar North"}, discovered)
}

func TestImportService_Prepare(t *testing.T) {
	orgID := uuid.New()

	tests := []struct {
		name           string
		jobID          uuid.UUID
		lines          []domain.ImportLine
		policy         domain.DuplicatePolicy
		setupMocks     func(*importMocks)
		expectedError  error
		expectedStatus domain.ImportJobStatus
		check          func(*testing.T, *domain.ImportJob)
	}{
		{
			name:   "known_locations_go_straight_to_processing",
			jobID:  uuid.Nil,
			lines:  []domain.ImportLine{helpers.CreateTestImportLine()},
			policy: domain.PolicySkip,
			setupMocks: func(m *importMocks) {
				m.inventory.EXPECT().FindBySKU(gomock.Any(), orgID, gomock.Any()).Return(nil, nil)
				m.locations.EXPECT().KnownNames(gomock.Any(), orgID).Return(map[string]struct{}{
					"warehouse a": {},
					"bin a-02":    {},
				}, nil)
				m.jobs.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedStatus: domain.ImportProcessing,
			check: func(t *testing.T, job *domain.ImportJob) {
				assert.NotEqual(t, uuid.Nil, job.ID)
				assert.Empty(t, job.Plan.NewLocations)
			},
		},
		{
			name:   "unknown_location_parks_at_confirmation_gate",
			jobID:  uuid.New(),
			lines:  []domain.ImportLine{helpers.CreateTestImportLine()},
			policy: domain.PolicyAddToStock,
			setupMocks: func(m *importMocks) {
				m.inventory.EXPECT().FindBySKU(gomock.Any(), orgID, gomock.Any()).Return(nil, nil)
				m.locations.EXPECT().KnownNames(gomock.Any(), orgID).Return(map[string]struct{}{}, nil)
				m.jobs.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedStatus: domain.ImportAwaitingConfirmation,
			check: func(t *testing.T, job *domain.ImportJob) {
				assert.ElementsMatch(t, []string{"Warehouse A", "Bin A-02"}, job.Plan.NewLocations)
			},
		},
		{
			name:          "empty_batch_rejected",
			jobID:         uuid.Nil,
			lines:         nil,
			policy:        domain.PolicySkip,
			setupMocks:    func(m *importMocks) {},
			expectedError: domain.ErrInvalidArgument,
		},
		{
			name:          "unknown_policy_rejected",
			jobID:         uuid.Nil,
			lines:         []domain.ImportLine{helpers.CreateTestImportLine()},
			policy:        "merge",
			setupMocks:    func(m *importMocks) {},
			expectedError: domain.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, m := newImportService(t, ctrl)
			tt.setupMocks(m)

			job, err := svc.Prepare(context.Background(), tt.jobID, orgID, "stock.csv", "alice", tt.lines, tt.policy)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, job)
			assert.Equal(t, tt.expectedStatus, job.Status)
			if tt.jobID != uuid.Nil {
				assert.Equal(t, tt.jobID, job.ID)
			}
			if tt.check != nil {
				tt.check(t, job)
			}
		})
	}
}

func TestImportService_Confirm(t *testing.T) {
	orgID := uuid.New()
	jobID := uuid.New()

	awaitingJob := func() *domain.ImportJob {
		return &domain.ImportJob{
			ID:             jobID,
			OrganizationID: orgID,
			Status:         domain.ImportAwaitingConfirmation,
			Plan: &domain.ImportPlan{
				NewLocations: []string{"Cellar North", "Bin Z-99"},
				Policy:       domain.PolicySkip,
			},
		}
	}

	tests := []struct {
		name          string
		setupMocks    func(*importMocks)
		expectedError error
	}{
		{
			name: "creates_placeholder_locations_and_moves_to_processing",
			setupMocks: func(m *importMocks) {
				m.jobs.EXPECT().FindByID(gomock.Any(), jobID).Return(awaitingJob(), nil)
				m.locations.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, loc *domain.Location) error {
						assert.Equal(t, orgID, loc.OrganizationID)
						assert.Equal(t, "unzoned", loc.Zone)
						return nil
					}).
					Times(2)
				m.jobs.EXPECT().
					Update(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, job *domain.ImportJob) error {
						assert.Equal(t, domain.ImportProcessing, job.Status)
						return nil
					})
			},
		},
		{
			name: "confirming_a_processing_job_conflicts",
			setupMocks: func(m *importMocks) {
				job := awaitingJob()
				job.Status = domain.ImportProcessing
				m.jobs.EXPECT().FindByID(gomock.Any(), jobID).Return(job, nil)
			},
			expectedError: domain.ErrConflict,
		},
		{
			name: "unknown_job_returns_not_found",
			setupMocks: func(m *importMocks) {
				m.jobs.EXPECT().FindByID(gomock.Any(), jobID).Return(nil, nil)
			},
			expectedError: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, m := newImportService(t, ctrl)
			tt.setupMocks(m)

			job, err := svc.Confirm(context.Background(), jobID)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.ImportProcessing, job.Status)
		})
	}
}

func TestImportService_Cancel(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name          string
		status        domain.ImportJobStatus
		setupMocks    func(*importMocks, domain.ImportJobStatus)
		expectedError error
	}{
		{
			name:   "awaiting_confirmation_cancels",
			status: domain.ImportAwaitingConfirmation,
			setupMocks: func(m *importMocks, status domain.ImportJobStatus) {
				m.jobs.EXPECT().FindByID(gomock.Any(), jobID).Return(&domain.ImportJob{ID: jobID, Status: status}, nil)
				m.jobs.EXPECT().
					Update(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, job *domain.ImportJob) error {
						assert.Equal(t, domain.ImportCancelled, job.Status)
						return nil
					})
			},
		},
		{
			name:   "cancelling_twice_is_a_noop",
			status: domain.ImportCancelled,
			setupMocks: func(m *importMocks, status domain.ImportJobStatus) {
				m.jobs.EXPECT().FindByID(gomock.Any(), jobID).Return(&domain.ImportJob{ID: jobID, Status: status}, nil)
			},
		},
		{
			name:   "completed_job_can_no_longer_be_cancelled",
			status: domain.ImportCompleted,
			setupMocks: func(m *importMocks, status domain.ImportJobStatus) {
				m.jobs.EXPECT().FindByID(gomock.Any(), jobID).Return(&domain.ImportJob{ID: jobID, Status: status}, nil)
			},
			expectedError: domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, m := newImportService(t, ctrl)
			tt.setupMocks(m, tt.status)

			err := svc.Cancel(context.Background(), jobID)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestImportService_Commit(t *testing.T) {
	orgID := uuid.New()
	jobID := uuid.New()
	existingID := uuid.New()

	processingJob := func(policy domain.DuplicatePolicy, lines []domain.ClassifiedLine) *domain.ImportJob {
		return &domain.ImportJob{
			ID:             jobID,
			OrganizationID: orgID,
			FileName:       "stock.csv",
			RequestedBy:    "alice",
			Status:         domain.ImportProcessing,
			Plan: &domain.ImportPlan{
				Lines:  lines,
				Policy: policy,
			},
		}
	}

	newLine := func(row int, sku string) domain.ClassifiedLine {
		return domain.ClassifiedLine{Line: helpers.CreateTestImportLine(func(l *domain.ImportLine) {
			l.RowNumber = row
			l.SKU = sku
		})}
	}
	dupLine := func(row int, sku string) domain.ClassifiedLine {
		cl := newLine(row, sku)
		id := existingID
		cl.Existing = &id
		return cl
	}

	tests := []struct {
		name       string
		job        *domain.ImportJob
		setupMocks func(*importMocks)
		check      func(*testing.T, *domain.ImportResult)
		expectErr  error
	}{
		{
			name: "new_lines_insert_through_the_ledger",
			job:  processingJob(domain.PolicySkip, []domain.ClassifiedLine{newLine(2, "NEW-001"), newLine(3, "NEW-002")}),
			setupMocks: func(m *importMocks) {
				m.ledger.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(2)
				m.movements.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(2)
				m.jobs.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().PublishNotification(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, result *domain.ImportResult) {
				assert.Equal(t, 2, result.InsertedCount)
				assert.Empty(t, result.Errors)
			},
		},
		{
			name: "skip_policy_records_error_and_leaves_duplicates_untouched",
			job:  processingJob(domain.PolicySkip, []domain.ClassifiedLine{dupLine(2, "CAB-750-001")}),
			setupMocks: func(m *importMocks) {
				m.jobs.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().PublishNotification(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, result *domain.ImportResult) {
				assert.Equal(t, 1, result.SkippedCount)
				assert.Equal(t, 0, result.InsertedCount)
				assert.Equal(t, 0, result.UpdatedCount)
				require.Len(t, result.Errors, 1)
				assert.Contains(t, result.Errors[0], "row 2 (sku CAB-750-001)")
				assert.Contains(t, result.Errors[0], "skipped due to duplicate")
			},
		},
		{
			name: "add_to_stock_policy_increments_both_sub_quantities",
			job: processingJob(domain.PolicyAddToStock, []domain.ClassifiedLine{func() domain.ClassifiedLine {
				cl := dupLine(2, "CAB-750-001")
				cl.Line.PickingBinQuantity = 3
				cl.Line.OverstockQuantity = 10
				return cl
			}()}),
			setupMocks: func(m *importMocks) {
				current := helpers.CreateTestItem(func(i *domain.InventoryItem) {
					i.ID = existingID
					i.OrganizationID = orgID
					i.PickingBinQuantity = 5
					i.OverstockQuantity = 20
				})
				m.ledger.EXPECT().
					Apply(gomock.Any(), existingID, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ uuid.UUID, mutate ports.Mutation) (*domain.InventoryItem, *domain.InventoryItem, error) {
						mutated, err := mutate(*current)
						require.NoError(t, err)
						assert.Equal(t, 8, mutated.PickingBinQuantity)
						assert.Equal(t, 30, mutated.OverstockQuantity)
						old := *current
						return &old, &mutated, nil
					})
				m.movements.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, mv *domain.StockMovement) error {
						assert.Equal(t, "bulk import - added to stock", mv.Reason)
						return nil
					})
				m.jobs.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().PublishNotification(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, result *domain.ImportResult) {
				assert.Equal(t, 1, result.UpdatedCount)
			},
		},
		{
			name: "update_policy_replaces_fields",
			job: processingJob(domain.PolicyUpdate, []domain.ClassifiedLine{func() domain.ClassifiedLine {
				cl := dupLine(2, "CAB-750-001")
				cl.Line.Name = "Cabernet Reserve 750ml"
				cl.Line.PickingBinQuantity = 2
				cl.Line.OverstockQuantity = 7
				return cl
			}()}),
			setupMocks: func(m *importMocks) {
				current := helpers.CreateTestItem(func(i *domain.InventoryItem) {
					i.ID = existingID
					i.OrganizationID = orgID
				})
				m.ledger.EXPECT().
					Apply(gomock.Any(), existingID, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ uuid.UUID, mutate ports.Mutation) (*domain.InventoryItem, *domain.InventoryItem, error) {
						mutated, err := mutate(*current)
						require.NoError(t, err)
						assert.Equal(t, "Cabernet Reserve 750ml", mutated.Name)
						assert.Equal(t, 2, mutated.PickingBinQuantity)
						assert.Equal(t, 7, mutated.OverstockQuantity)
						old := *current
						return &old, &mutated, nil
					})
				m.jobs.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().PublishNotification(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, result *domain.ImportResult) {
				assert.Equal(t, 1, result.UpdatedCount)
			},
		},
		{
			name: "in_batch_repeat_sku_follows_policy_after_first_insert",
			job:  processingJob(domain.PolicySkip, []domain.ClassifiedLine{newLine(2, "NEW-001"), newLine(3, "new-001")}),
			setupMocks: func(m *importMocks) {
				m.ledger.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(1)
				m.movements.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(1)
				m.jobs.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().PublishNotification(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, result *domain.ImportResult) {
				assert.Equal(t, 1, result.InsertedCount)
				assert.Equal(t, 1, result.SkippedCount)
				require.Len(t, result.Errors, 1)
				assert.Contains(t, result.Errors[0], "skipped due to duplicate")
			},
		},
		{
			name: "lines_missing_sku_or_name_are_recorded_as_errors",
			job: processingJob(domain.PolicyUpdate, []domain.ClassifiedLine{
				newLine(2, ""),
				func() domain.ClassifiedLine {
					cl := newLine(3, "NEW-002")
					cl.Line.Name = ""
					return cl
				}(),
				newLine(4, "NEW-003"),
			}),
			setupMocks: func(m *importMocks) {
				m.ledger.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(1)
				m.movements.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(1)
				m.jobs.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().PublishNotification(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, result *domain.ImportResult) {
				assert.Equal(t, 1, result.InsertedCount)
				require.Len(t, result.Errors, 2)
				assert.Contains(t, result.Errors[0], "row 2 (sku )")
				assert.Contains(t, result.Errors[0], "missing required sku or name")
				assert.Contains(t, result.Errors[1], "row 3 (sku NEW-002)")
			},
		},
		{
			name: "line_failure_is_collected_and_the_batch_continues",
			job:  processingJob(domain.PolicySkip, []domain.ClassifiedLine{newLine(2, "BAD-001"), newLine(3, "NEW-002")}),
			setupMocks: func(m *importMocks) {
				gomock.InOrder(
					m.ledger.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("constraint violation")),
					m.ledger.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil),
				)
				m.movements.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
				m.jobs.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().PublishNotification(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, result *domain.ImportResult) {
				assert.Equal(t, 1, result.InsertedCount)
				require.Len(t, result.Errors, 1)
				assert.Contains(t, result.Errors[0], "row 2 (sku BAD-001)")
				assert.Contains(t, result.Errors[0], "constraint violation")
			},
		},
		{
			name: "committing_a_job_awaiting_confirmation_conflicts",
			job: &domain.ImportJob{
				ID:             jobID,
				OrganizationID: orgID,
				Status:         domain.ImportAwaitingConfirmation,
				Plan:           &domain.ImportPlan{Policy: domain.PolicySkip},
			},
			setupMocks: func(m *importMocks) {},
			expectErr:  domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, m := newImportService(t, ctrl)
			m.jobs.EXPECT().FindByID(gomock.Any(), jobID).Return(tt.job, nil)
			tt.setupMocks(m)

			result, err := svc.Commit(context.Background(), jobID)

			if tt.expectErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result)
			if tt.check != nil {
				tt.check(t, result)
			}
		})
	}
}
