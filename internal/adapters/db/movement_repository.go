// internal/adapters/db/movement_repository.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

type movementRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewMovementRepository creates a new stock movement repository
func NewMovementRepository(db *Database, logger *slog.Logger) ports.MovementRepository {
	return &movementRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "movement")),
	}
}

func (r *movementRepository) Insert(ctx context.Context, mv *domain.StockMovement) error {
	query := `
		INSERT INTO stock_movements (
			id, organization_id, item_id, movement_type,
			quantity_change, reason, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		mv.ID, mv.OrganizationID, mv.ItemID, mv.MovementType,
		mv.QuantityChange, mv.Reason, mv.CreatedBy, mv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stock movement: %w", err)
	}

	return nil
}

func (r *movementRepository) FindByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]*domain.StockMovement, error) {
	query := `
		SELECT id, organization_id, item_id, movement_type,
		       quantity_change, reason, created_by, created_at
		FROM stock_movements
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var mvs []*domain.StockMovement
	for rows.Next() {
		mv := &domain.StockMovement{}
		var reason, createdBy sql.NullString
		if err := rows.Scan(&mv.ID, &mv.OrganizationID, &mv.ItemID, &mv.MovementType,
			&mv.QuantityChange, &reason, &createdBy, &mv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		mv.Reason = reason.String
		mv.CreatedBy = createdBy.String
		mvs = append(mvs, mv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return mvs, nil
}
