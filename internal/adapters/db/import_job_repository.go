// internal/adapters/db/import_job_repository.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

type importJobRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewImportJobRepository creates a new import job repository
func NewImportJobRepository(db *Database, logger *slog.Logger) ports.ImportJobRepository {
	return &importJobRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "import_job")),
	}
}

func (r *importJobRepository) Insert(ctx context.Context, job *domain.ImportJob) error {
	planJSON, resultJSON, err := marshalJobPayloads(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO import_jobs (
			id, organization_id, file_name, status, plan, result,
			requested_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		job.ID, job.OrganizationID, job.FileName, job.Status, planJSON, resultJSON,
		job.RequestedBy, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert import job: %w", err)
	}

	r.logger.DebugContext(ctx, "import job inserted",
		slog.String("id", job.ID.String()),
		slog.String("status", string(job.Status)))

	return nil
}

func (r *importJobRepository) Update(ctx context.Context, job *domain.ImportJob) error {
	planJSON, resultJSON, err := marshalJobPayloads(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE import_jobs
		SET status = $2, plan = $3, result = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, job.ID, job.Status, planJSON, resultJSON, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import job %s: %w", job.ID, domain.ErrNotFound)
	}

	return nil
}

func (r *importJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	query := `
		SELECT id, organization_id, file_name, status, plan, result,
		       requested_by, created_at, updated_at
		FROM import_jobs
		WHERE id = $1`

	job := &domain.ImportJob{}
	var fileName, requestedBy sql.NullString
	var planJSON, resultJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.OrganizationID, &fileName, &job.Status, &planJSON, &resultJSON,
		&requestedBy, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find import job: %w", err)
	}

	job.FileName = fileName.String
	job.RequestedBy = requestedBy.String

	if len(planJSON) > 0 {
		job.Plan = &domain.ImportPlan{}
		if err := json.Unmarshal(planJSON, job.Plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal import plan: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		job.Result = &domain.ImportResult{}
		if err := json.Unmarshal(resultJSON, job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal import result: %w", err)
		}
	}

	return job, nil
}

func marshalJobPayloads(job *domain.ImportJob) ([]byte, []byte, error) {
	var planJSON, resultJSON []byte
	var err error

	if job.Plan != nil {
		planJSON, err = json.Marshal(job.Plan)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal import plan: %w", err)
		}
	}
	if job.Result != nil {
		resultJSON, err = json.Marshal(job.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal import result: %w", err)
		}
	}

	return planJSON, resultJSON, nil
}
