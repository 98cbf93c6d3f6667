// internal/workers/automation_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
	"github.com/binwise/binwise-be/internal/core/services"
)

const (
	automationLockStripes = 64
	sequenceTTL           = 24 * time.Hour
)

// AutomationProcessor consumes stock change events and runs them through
// the automation rule engine. Rules must observe an item's (old, new) pairs
// in ledger commit order, but asynq leases tasks concurrently and retries
// with backoff, so delivery order is not commit order. The processor
// restores it per item: striped locks serialize handlers for the same item
// within this process, and the last evaluated sequence kept in the cache
// rejects stale events and requeues early ones across processes.
type AutomationProcessor struct {
	automation *services.AutomationService
	cache      ports.CacheRepository
	locks      [automationLockStripes]sync.Mutex
	logger     *slog.Logger
}

// NewAutomationProcessor creates a new automation processor
func NewAutomationProcessor(automation *services.AutomationService, cache ports.CacheRepository, logger *slog.Logger) *AutomationProcessor {
	return &AutomationProcessor{
		automation: automation,
		cache:      cache,
		logger:     logger.With(slog.String("processor", "automation")),
	}
}

func (p *AutomationProcessor) lockFor(itemID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(itemID[:])
	return &p.locks[h.Sum32()%automationLockStripes]
}

func sequenceCacheKey(itemID uuid.UUID) string {
	return "automation:last_seq:" + itemID.String()
}

// HandleStockChange evaluates the organization's rules against one event.
// Per-rule failures are contained by the service and do not fail the task;
// infrastructure errors (rule loading) and out-of-order arrivals trigger an
// asynq retry.
func (p *AutomationProcessor) HandleStockChange(ctx context.Context, t *asynq.Task) error {
	var event domain.StockChangeEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("failed to unmarshal stock change event: %w", err)
	}

	mu := p.lockFor(event.ItemID)
	mu.Lock()
	defer mu.Unlock()

	if skip, err := p.checkSequence(ctx, event); err != nil {
		return err
	} else if skip {
		return nil
	}

	outcomes, err := p.automation.Evaluate(ctx, event)
	if err != nil {
		return fmt.Errorf("automation pass failed for item %s: %w", event.ItemID, err)
	}

	p.recordSequence(ctx, event)

	for _, outcome := range outcomes {
		if outcome.Status == domain.RuleFailed {
			p.logger.WarnContext(ctx, "automation rule failed",
				slog.String("rule_id", outcome.RuleID.String()),
				slog.String("item_id", event.ItemID.String()),
				slog.String("error", outcome.Error))
		}
	}

	return nil
}

// checkSequence compares the event against the item's last evaluated
// sequence. Stale events (already superseded by a later evaluation) are
// skipped; an event that arrives ahead of a missing predecessor is requeued
// so commit order is preserved. Events for items with no recorded sequence,
// and all events when no cache is configured, are accepted as-is.
func (p *AutomationProcessor) checkSequence(ctx context.Context, event domain.StockChangeEvent) (bool, error) {
	if p.cache == nil || event.Sequence <= 0 {
		return false, nil
	}

	var last int64
	if err := p.cache.Get(ctx, sequenceCacheKey(event.ItemID), &last); err != nil {
		return false, nil
	}

	if event.Sequence <= last {
		p.logger.DebugContext(ctx, "skipping stale stock change event",
			slog.String("item_id", event.ItemID.String()),
			slog.Int64("sequence", event.Sequence),
			slog.Int64("last_evaluated", last))
		return true, nil
	}
	if event.Sequence > last+1 {
		return false, fmt.Errorf("stock change %d for item %s arrived before %d was evaluated, requeueing",
			event.Sequence, event.ItemID, last+1)
	}
	return false, nil
}

func (p *AutomationProcessor) recordSequence(ctx context.Context, event domain.StockChangeEvent) {
	if p.cache == nil || event.Sequence <= 0 {
		return
	}
	if err := p.cache.SetWithTTL(ctx, sequenceCacheKey(event.ItemID), event.Sequence, sequenceTTL); err != nil {
		p.logger.WarnContext(ctx, "failed to record evaluated sequence",
			slog.String("item_id", event.ItemID.String()),
			slog.Int64("sequence", event.Sequence),
			slog.String("error", err.Error()))
	}
}
