// internal/adapters/db/discrepancy_repository.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

type discrepancyRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewDiscrepancyRepository creates a new discrepancy repository
func NewDiscrepancyRepository(db *Database, logger *slog.Logger) ports.DiscrepancyRepository {
	return &discrepancyRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "discrepancy")),
	}
}

func (r *discrepancyRepository) Insert(ctx context.Context, rec *domain.DiscrepancyRecord) error {
	query := `
		INSERT INTO discrepancies (
			id, organization_id, item_id, location_string, location_type,
			original_quantity, counted_quantity, difference,
			reason, reported_by, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.OrganizationID, rec.ItemID, rec.LocationString, rec.LocationType,
		rec.OriginalQuantity, rec.CountedQuantity, rec.Difference,
		rec.Reason, rec.ReportedBy, rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert discrepancy: %w", err)
	}

	r.logger.DebugContext(ctx, "discrepancy inserted",
		slog.String("id", rec.ID.String()),
		slog.String("item_id", rec.ItemID.String()))

	return nil
}

func (r *discrepancyRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.DiscrepancyRecord, error) {
	query := `
		SELECT id, organization_id, item_id, location_string, location_type,
		       original_quantity, counted_quantity, difference,
		       reason, reported_by, status, created_at, resolved_at
		FROM discrepancies
		WHERE id = $1`

	rec, err := scanDiscrepancy(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find discrepancy: %w", err)
	}
	return rec, nil
}

func (r *discrepancyRepository) FindAll(ctx context.Context, params ports.DiscrepancyListParams) ([]*domain.DiscrepancyRecord, int64, error) {
	qb := squirrel.Select(
		"id", "organization_id", "item_id", "location_string", "location_type",
		"original_quantity", "counted_quantity", "difference",
		"reason", "reported_by", "status", "created_at", "resolved_at",
	).From("discrepancies").
		Where(squirrel.Eq{"organization_id": params.OrganizationID}).
		PlaceholderFormat(squirrel.Dollar)

	if params.ItemID != uuid.Nil {
		qb = qb.Where(squirrel.Eq{"item_id": params.ItemID})
	}
	if params.Status != "" {
		qb = qb.Where(squirrel.Eq{"status": params.Status})
	}

	countQb := qb.Column("COUNT(*) OVER()").Limit(1)
	countSQL, countArgs, err := countQb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var totalCount int64
	err = r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&totalCount)
	if err != nil && err != pgx.ErrNoRows {
		return nil, 0, fmt.Errorf("failed to count discrepancies: %w", err)
	}

	qb = qb.OrderBy("created_at DESC")
	if params.PageSize > 0 {
		qb = qb.Limit(uint64(params.PageSize))
		if params.Page > 1 {
			qb = qb.Offset(uint64((params.Page - 1) * params.PageSize))
		}
	}

	sqlQuery, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query discrepancies: %w", err)
	}
	defer rows.Close()

	var recs []*domain.DiscrepancyRecord
	for rows.Next() {
		rec, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan discrepancy: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return recs, totalCount, nil
}

// MarkResolved flips pending -> resolved. The WHERE clause makes the flip
// idempotent: a second call affects zero rows and returns false.
func (r *discrepancyRepository) MarkResolved(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE discrepancies
		SET status = $2, resolved_at = NOW()
		WHERE id = $1 AND status = $3`

	tag, err := r.db.Exec(ctx, query, id, domain.DiscrepancyResolved, domain.DiscrepancyPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark discrepancy resolved: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *discrepancyRepository) CountPendingOlderThan(ctx context.Context, days int) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM discrepancies
		WHERE status = $1 AND created_at < NOW() - ($2 * INTERVAL '1 day')`

	var count int64
	err := r.db.QueryRow(ctx, query, domain.DiscrepancyPending, days).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count aged discrepancies: %w", err)
	}
	return count, nil
}

func scanDiscrepancy(row pgx.Row) (*domain.DiscrepancyRecord, error) {
	rec := &domain.DiscrepancyRecord{}
	var reason, reportedBy sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.OrganizationID, &rec.ItemID, &rec.LocationString, &rec.LocationType,
		&rec.OriginalQuantity, &rec.CountedQuantity, &rec.Difference,
		&reason, &reportedBy, &rec.Status, &rec.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Reason = reason.String
	rec.ReportedBy = reportedBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		rec.ResolvedAt = &t
	}

	return rec, nil
}
