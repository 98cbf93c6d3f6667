// internal/core/ports/events.go
package ports

import (
	"context"

	"github.com/binwise/binwise-be/internal/core/domain"
)

// EventPublisher delivers stock change events to the automation pipeline.
// Dispatch is fire-and-forget relative to the ledger write path: a slow or
// failing consumer must never delay the next mutation. Per-item ordering
// follows publish order.
type EventPublisher interface {
	PublishStockChange(ctx context.Context, event domain.StockChangeEvent) error
}

// NotificationPublisher delivers notification events to the external
// notification/activity-log collaborator.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, event domain.NotificationEvent) error
}
