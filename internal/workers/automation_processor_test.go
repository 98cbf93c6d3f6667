// internal/workers/automation_processor_test.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/binwise/binwise-be/internal/adapters/events"
	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/services"
	"github.com/binwise/binwise-be/test/helpers"
	"github.com/binwise/binwise-be/test/mocks"
)

type automationProcessorMocks struct {
	rules    *mocks.MockRuleRepository
	notifier *mocks.MockNotificationPublisher
	cache    *mocks.MockCacheRepository
}

func newAutomationProcessor(t *testing.T, ctrl *gomock.Controller) (*AutomationProcessor, *automationProcessorMocks) {
	t.Helper()
	m := &automationProcessorMocks{
		rules:    mocks.NewMockRuleRepository(ctrl),
		notifier: mocks.NewMockNotificationPublisher(ctrl),
		cache:    mocks.NewMockCacheRepository(ctrl),
	}
	automation := services.NewAutomationService(m.rules, m.notifier, helpers.TestLogger())
	return NewAutomationProcessor(automation, m.cache, helpers.TestLogger()), m
}

func stockChangeTask(t *testing.T, event domain.StockChangeEvent) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return asynq.NewTask(events.TypeStockChange, payload)
}

func TestAutomationProcessor_HandleStockChange(t *testing.T) {
	itemID := uuid.New()
	orgID := uuid.New()

	changeEvent := func(sequence int64) domain.StockChangeEvent {
		item := helpers.CreateTestItem(func(i *domain.InventoryItem) {
			i.ID = itemID
			i.OrganizationID = orgID
			i.PickingBinQuantity = 5
			i.OverstockQuantity = 10
		})
		old := item.Snapshot()
		updated := item.Snapshot()
		updated.OverstockQuantity = 0
		return domain.StockChangeEvent{
			ItemID:         itemID,
			OrganizationID: orgID,
			Sequence:       sequence,
			Old:            old,
			New:            updated,
			EventType:      domain.StockEventUpdate,
			OccurredAt:     time.Now(),
		}
	}

	lastEvaluated := func(cache *mocks.MockCacheRepository, last int64) {
		cache.EXPECT().
			Get(gomock.Any(), "automation:last_seq:"+itemID.String(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, dest interface{}) error {
				*dest.(*int64) = last
				return nil
			})
	}

	tests := []struct {
		name          string
		event         domain.StockChangeEvent
		setupMocks    func(*automationProcessorMocks)
		errorContains string
	}{
		{
			name:  "next_sequence_is_evaluated_and_recorded",
			event: changeEvent(2),
			setupMocks: func(m *automationProcessorMocks) {
				lastEvaluated(m.cache, 1)
				rule := helpers.CreateTestRule(func(r *domain.AutomationRule) {
					r.OrganizationID = orgID
				})
				m.rules.EXPECT().
					FindActiveByOrganization(gomock.Any(), orgID).
					Return([]*domain.AutomationRule{rule}, nil)
				m.notifier.EXPECT().PublishNotification(gomock.Any(), gomock.Any()).Return(nil)
				m.cache.EXPECT().
					SetWithTTL(gomock.Any(), "automation:last_seq:"+itemID.String(), int64(2), gomock.Any()).
					Return(nil)
			},
		},
		{
			name:  "stale_sequence_is_skipped_without_evaluation",
			event: changeEvent(2),
			setupMocks: func(m *automationProcessorMocks) {
				lastEvaluated(m.cache, 3)
			},
		},
		{
			name:  "sequence_gap_requeues_without_evaluation",
			event: changeEvent(3),
			setupMocks: func(m *automationProcessorMocks) {
				lastEvaluated(m.cache, 1)
			},
			errorContains: "arrived before",
		},
		{
			name:  "no_recorded_sequence_is_evaluated",
			event: changeEvent(1),
			setupMocks: func(m *automationProcessorMocks) {
				m.cache.EXPECT().
					Get(gomock.Any(), "automation:last_seq:"+itemID.String(), gomock.Any()).
					Return(errors.New("cache miss"))
				m.rules.EXPECT().
					FindActiveByOrganization(gomock.Any(), orgID).
					Return(nil, nil)
				m.cache.EXPECT().
					SetWithTTL(gomock.Any(), "automation:last_seq:"+itemID.String(), int64(1), gomock.Any()).
					Return(nil)
			},
		},
		{
			name:  "rule_load_failure_requeues_without_recording",
			event: changeEvent(2),
			setupMocks: func(m *automationProcessorMocks) {
				lastEvaluated(m.cache, 1)
				m.rules.EXPECT().
					FindActiveByOrganization(gomock.Any(), orgID).
					Return(nil, errors.New("database down"))
			},
			errorContains: "automation pass failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			processor, m := newAutomationProcessor(t, ctrl)
			tt.setupMocks(m)

			err := processor.HandleStockChange(context.Background(), stockChangeTask(t, tt.event))

			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAutomationProcessor_HandleStockChange_BadPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	processor, _ := newAutomationProcessor(t, ctrl)

	err := processor.HandleStockChange(context.Background(), asynq.NewTask(events.TypeStockChange, []byte("not json")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestAutomationProcessor_RestoresOrderAcrossRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	itemID := uuid.New()
	orgID := uuid.New()

	processor, m := newAutomationProcessor(t, ctrl)

	// A cache backed by a map stands in for redis so the recorded sequence
	// carries across handler invocations.
	stored := map[string]int64{}
	m.cache.EXPECT().
		Get(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key string, dest interface{}) error {
			last, ok := stored[key]
			if !ok {
				return errors.New("cache miss")
			}
			*dest.(*int64) = last
			return nil
		}).
		AnyTimes()
	// Recorded sequences double as the evaluation trace: the processor only
	// records after a successful evaluation.
	var evaluated []int64
	m.cache.EXPECT().
		SetWithTTL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key string, value interface{}, _ time.Duration) error {
			stored[key] = value.(int64)
			evaluated = append(evaluated, value.(int64))
			return nil
		}).
		AnyTimes()

	m.rules.EXPECT().
		FindActiveByOrganization(gomock.Any(), orgID).
		Return(nil, nil).
		Times(3)

	handle := func(sequence int64) error {
		event := domain.StockChangeEvent{
			ItemID:         itemID,
			OrganizationID: orgID,
			Sequence:       sequence,
			EventType:      domain.StockEventUpdate,
			OccurredAt:     time.Now(),
		}
		return processor.HandleStockChange(context.Background(), stockChangeTask(t, event))
	}

	// Commit order was 1, 2, 3 but the queue delivers 1, 3, 2 and then
	// redelivers 3 and 2. The early 3 is requeued, the late 2 and the
	// retried 3 are evaluated in commit order, and the final stale
	// redelivery of 2 is dropped without another evaluation.
	require.NoError(t, handle(1))
	require.Error(t, handle(3))
	require.NoError(t, handle(2))
	require.NoError(t, handle(3))
	require.NoError(t, handle(2))

	assert.Equal(t, []int64{1, 2, 3}, evaluated)
}
