// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/binwise/binwise-be/internal/adapters/db"
	"github.com/binwise/binwise-be/internal/core/ports"
	"github.com/binwise/binwise-be/internal/pkg/config"
)

// Task types for periodic maintenance.
const (
	TypeCleanupOldData   = "cleanup:old_data"
	TypeCleanupTempFiles = "cleanup:temp_files"
)

// CleanupProcessor handles periodic maintenance tasks
type CleanupProcessor struct {
	db            *db.Database
	discrepancies ports.DiscrepancyRepository
	config        *config.Config
	logger        *slog.Logger
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(database *db.Database, discrepancies ports.DiscrepancyRepository, cfg *config.Config, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		db:            database,
		discrepancies: discrepancies,
		config:        cfg,
		logger:        logger.With(slog.String("processor", "cleanup")),
	}
}

// CleanupOldData removes old activity logs and flags aged pending
// discrepancies. Pending discrepancies are never auto-resolved; aged ones
// are surfaced in the logs for operator follow-up.
func (p *CleanupProcessor) CleanupOldData(ctx context.Context, t *asynq.Task) error {
	p.logger.InfoContext(ctx, "cleaning up old data")

	query := `DELETE FROM activity_logs WHERE created_at < NOW() - INTERVAL '90 days'`

	result, err := p.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to cleanup activity logs: %w", err)
	}

	aged, err := p.discrepancies.CountPendingOlderThan(ctx, p.config.Reconciliation.StaleDiscrepancyDays)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to count aged discrepancies",
			slog.String("error", err.Error()))
	} else if aged > 0 {
		p.logger.WarnContext(ctx, "pending discrepancies need review",
			slog.Int64("count", aged),
			slog.Int("older_than_days", p.config.Reconciliation.StaleDiscrepancyDays))
	}

	p.logger.InfoContext(ctx, "old data cleaned up",
		slog.Int64("rows_deleted", result.RowsAffected()))

	return nil
}

// CleanupTempFiles removes old temporary files
func (p *CleanupProcessor) CleanupTempFiles(ctx context.Context, t *asynq.Task) error {
	p.logger.InfoContext(ctx, "cleaning up temp files")

	tempDir := p.config.FileProcessing.TempDir
	maxAge := 24 * time.Hour

	var deletedCount int
	err := filepath.Walk(tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && time.Since(info.ModTime()) > maxAge {
			if err := os.Remove(path); err != nil {
				p.logger.WarnContext(ctx, "failed to delete temp file",
					slog.String("file", path),
					slog.String("error", err.Error()))
			} else {
				deletedCount++
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to walk temp directory: %w", err)
	}

	p.logger.InfoContext(ctx, "temp files cleaned up",
		slog.Int("files_deleted", deletedCount))

	return nil
}
