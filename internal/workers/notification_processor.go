// internal/workers/notification_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/binwise/binwise-be/internal/adapters/db"
	"github.com/binwise/binwise-be/internal/core/domain"
)

// NotificationProcessor persists activity notifications emitted by the
// reconciler, the rule engine and the import pipeline.
type NotificationProcessor struct {
	db     *db.Database
	logger *slog.Logger
}

// NewNotificationProcessor creates a new notification processor
func NewNotificationProcessor(database *db.Database, logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		db:     database,
		logger: logger.With(slog.String("processor", "notification")),
	}
}

// RecordActivity writes one notification event to the activity log.
func (p *NotificationProcessor) RecordActivity(ctx context.Context, t *asynq.Task) error {
	var event domain.NotificationEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("failed to unmarshal notification event: %w", err)
	}

	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal activity details: %w", err)
		}
	}

	query := `
		INSERT INTO activity_logs (id, organization_id, activity_type, description, details)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := p.db.Exec(ctx, query,
		uuid.New(), event.OrganizationID, event.ActivityType, event.Description, detailsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}

	p.logger.InfoContext(ctx, "activity recorded",
		slog.String("activity_type", event.ActivityType),
		slog.String("organization_id", event.OrganizationID.String()))

	return nil
}
