// internal/adapters/events/asynq_publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

// Task types routed through asynq.
const (
	TypeStockChange  = "stock:change"
	TypeNotification = "notify:activity"
)

// AsynqPublisher dispatches core events onto the task queue. The automation
// worker consumes stock change events; the notification worker consumes
// activity events. Publishing is fire-and-forget relative to the producing
// write path.
type AsynqPublisher struct {
	client *asynq.Client
	logger *slog.Logger
}

var _ ports.EventPublisher = (*AsynqPublisher)(nil)
var _ ports.NotificationPublisher = (*AsynqPublisher)(nil)

// NewAsynqPublisher creates a new asynq-backed event publisher.
func NewAsynqPublisher(client *asynq.Client, logger *slog.Logger) *AsynqPublisher {
	return &AsynqPublisher{
		client: client,
		logger: logger.With(slog.String("component", "event_publisher")),
	}
}

// PublishStockChange enqueues one stock change event on the critical queue.
// Events for the same item are enqueued in publish order.
func (p *AsynqPublisher) PublishStockChange(ctx context.Context, event domain.StockChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stock change event: %w", err)
	}

	task := asynq.NewTask(TypeStockChange, payload)
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue("critical"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to enqueue stock change event: %w", err)
	}

	p.logger.DebugContext(ctx, "stock change event enqueued",
		slog.String("task_id", info.ID),
		slog.String("item_id", event.ItemID.String()),
		slog.String("event_type", string(event.EventType)))

	return nil
}

// PublishNotification enqueues an activity notification on the default queue.
func (p *AsynqPublisher) PublishNotification(ctx context.Context, event domain.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	task := asynq.NewTask(TypeNotification, payload)
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue("default"),
		asynq.MaxRetry(5),
		asynq.Retention(24*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to enqueue notification event: %w", err)
	}

	p.logger.DebugContext(ctx, "notification event enqueued",
		slog.String("task_id", info.ID),
		slog.String("activity_type", event.ActivityType))

	return nil
}
