// internal/adapters/db/location_repository.go
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

type locationRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *Database, logger *slog.Logger) ports.LocationRepository {
	return &locationRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "location")),
	}
}

func (r *locationRepository) Insert(ctx context.Context, loc *domain.Location) error {
	query := `
		INSERT INTO locations (id, organization_id, name, zone, aisle, shelf, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		loc.ID, loc.OrganizationID, loc.Name, loc.Zone, loc.Aisle, loc.Shelf, loc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("location %q already exists: %w", loc.Name, domain.ErrConflict)
		}
		return fmt.Errorf("failed to insert location: %w", err)
	}

	r.logger.DebugContext(ctx, "location inserted",
		slog.String("id", loc.ID.String()),
		slog.String("name", loc.Name))

	return nil
}

// KnownNames returns the normalized location name set for matching import
// lines against existing locations.
func (r *locationRepository) KnownNames(ctx context.Context, orgID uuid.UUID) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx,
		`SELECT LOWER(TRIM(name)) FROM locations WHERE organization_id = $1`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query location names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan location name: %w", err)
		}
		names[name] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return names, nil
}

func (r *locationRepository) FindAll(ctx context.Context, orgID uuid.UUID) ([]*domain.Location, error) {
	query := `
		SELECT id, organization_id, name, zone, aisle, shelf, created_at
		FROM locations
		WHERE organization_id = $1
		ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locs []*domain.Location
	for rows.Next() {
		loc := &domain.Location{}
		var zone, aisle, shelf sql.NullString
		if err := rows.Scan(&loc.ID, &loc.OrganizationID, &loc.Name,
			&zone, &aisle, &shelf, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		loc.Zone = zone.String
		loc.Aisle = aisle.String
		loc.Shelf = shelf.String
		locs = append(locs, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return locs, nil
}
