// internal/adapters/db/inventory_repository.go
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

const inventoryColumns = `
	id, organization_id, sku, name, description, category,
	picking_bin_quantity, overstock_quantity,
	reorder_level, picking_reorder_level,
	auto_reorder_enabled, auto_reorder_quantity,
	unit_cost, retail_price,
	location, picking_bin_location, vendor_id, barcode_url,
	version, created_at, updated_at`

// inventoryRepository implements ports.InventoryRepository
type inventoryRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *Database, logger *slog.Logger) ports.InventoryRepository {
	return &inventoryRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "inventory")),
	}
}

// Insert creates a new inventory item. The version column starts at 1.
func (r *inventoryRepository) Insert(ctx context.Context, item *domain.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (
			id, organization_id, sku, name, description, category,
			picking_bin_quantity, overstock_quantity,
			reorder_level, picking_reorder_level,
			auto_reorder_enabled, auto_reorder_quantity,
			unit_cost, retail_price,
			location, picking_bin_location, vendor_id, barcode_url,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, 1, $19, $20
		) RETURNING version`

	err := r.db.QueryRow(ctx, query,
		item.ID, item.OrganizationID, item.SKU, item.Name, item.Description, item.Category,
		item.PickingBinQuantity, item.OverstockQuantity,
		item.ReorderLevel, item.PickingReorderLevel,
		item.AutoReorderEnabled, item.AutoReorderQuantity,
		item.UnitCost, item.RetailPrice,
		item.Location, item.PickingBinLocation, item.VendorID, item.BarcodeURL,
		item.CreatedAt, item.UpdatedAt,
	).Scan(&item.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sku %q already exists: %w", item.SKU, domain.ErrConflict)
		}
		return fmt.Errorf("failed to insert inventory item: %w", err)
	}

	r.logger.DebugContext(ctx, "inventory item inserted",
		slog.String("id", item.ID.String()),
		slog.String("sku", item.SKU))

	return nil
}

// Update persists the item guarded by the version column. A version mismatch
// means another writer got there first and surfaces as domain.ErrConflict.
func (r *inventoryRepository) Update(ctx context.Context, item *domain.InventoryItem) error {
	query := `
		UPDATE inventory_items SET
			name = $3, description = $4, category = $5,
			picking_bin_quantity = $6, overstock_quantity = $7,
			reorder_level = $8, picking_reorder_level = $9,
			auto_reorder_enabled = $10, auto_reorder_quantity = $11,
			unit_cost = $12, retail_price = $13,
			location = $14, picking_bin_location = $15,
			vendor_id = $16, barcode_url = $17,
			version = version + 1, updated_at = $18
		WHERE id = $1 AND version = $2
		RETURNING version`

	err := r.db.QueryRow(ctx, query,
		item.ID, item.Version,
		item.Name, item.Description, item.Category,
		item.PickingBinQuantity, item.OverstockQuantity,
		item.ReorderLevel, item.PickingReorderLevel,
		item.AutoReorderEnabled, item.AutoReorderQuantity,
		item.UnitCost, item.RetailPrice,
		item.Location, item.PickingBinLocation,
		item.VendorID, item.BarcodeURL,
		item.UpdatedAt,
	).Scan(&item.Version)
	if err != nil {
		if err == pgx.ErrNoRows {
			exists, existsErr := r.Exists(ctx, item.ID)
			if existsErr == nil && !exists {
				return fmt.Errorf("inventory item %s: %w", item.ID, domain.ErrNotFound)
			}
			return fmt.Errorf("inventory item %s version %d is stale: %w",
				item.ID, item.Version, domain.ErrConflict)
		}
		return fmt.Errorf("failed to update inventory item: %w", err)
	}

	r.logger.DebugContext(ctx, "inventory item updated",
		slog.String("id", item.ID.String()),
		slog.Int64("version", item.Version))

	return nil
}

// FindByID retrieves an inventory item by ID
func (r *inventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE id = $1`

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find inventory item: %w", err)
	}
	return item, nil
}

// FindBySKU matches case-insensitively within the organization.
func (r *inventoryRepository) FindBySKU(ctx context.Context, orgID uuid.UUID, sku string) (*domain.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + `
		FROM inventory_items
		WHERE organization_id = $1 AND LOWER(sku) = LOWER(TRIM($2))`

	item, err := scanItem(r.db.QueryRow(ctx, query, orgID, sku))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find inventory item by sku: %w", err)
	}
	return item, nil
}

// Exists checks if an inventory item exists
func (r *inventoryRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM inventory_items WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}

// FindAll retrieves inventory items with filtering and pagination
func (r *inventoryRepository) FindAll(ctx context.Context, params ports.ItemListParams) ([]*domain.InventoryItem, int64, error) {
	qb := squirrel.Select(
		"id", "organization_id", "sku", "name", "description", "category",
		"picking_bin_quantity", "overstock_quantity",
		"reorder_level", "picking_reorder_level",
		"auto_reorder_enabled", "auto_reorder_quantity",
		"unit_cost", "retail_price",
		"location", "picking_bin_location", "vendor_id", "barcode_url",
		"version", "created_at", "updated_at",
	).From("inventory_items").
		Where(squirrel.Eq{"organization_id": params.OrganizationID}).
		PlaceholderFormat(squirrel.Dollar)

	if params.Search != "" {
		qb = qb.Where("(name ILIKE '%' || ? || '%' OR sku ILIKE '%' || ? || '%')",
			params.Search, params.Search)
	}
	if params.Category != "" {
		qb = qb.Where(squirrel.Eq{"category": params.Category})
	}
	if params.Location != "" {
		qb = qb.Where("LOWER(location) = LOWER(?)", params.Location)
	}
	switch params.Status {
	case domain.StatusOutOfStock:
		qb = qb.Where("picking_bin_quantity + overstock_quantity = 0")
	case domain.StatusLowStock:
		qb = qb.Where("picking_bin_quantity + overstock_quantity > 0").
			Where("picking_bin_quantity + overstock_quantity <= reorder_level")
	case domain.StatusInStock:
		qb = qb.Where("picking_bin_quantity + overstock_quantity > reorder_level")
	}

	countQb := qb.Column("COUNT(*) OVER()").Limit(1)
	countSQL, countArgs, err := countQb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var totalCount int64
	err = r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&totalCount)
	if err != nil && err != pgx.ErrNoRows {
		return nil, 0, fmt.Errorf("failed to count inventory items: %w", err)
	}

	orderBy := "created_at DESC"
	if params.SortBy != "" {
		direction := "ASC"
		if params.SortOrder == "desc" {
			direction = "DESC"
		}

		switch params.SortBy {
		case "name":
			orderBy = fmt.Sprintf("name %s", direction)
		case "sku":
			orderBy = fmt.Sprintf("sku %s", direction)
		case "quantity":
			orderBy = fmt.Sprintf("picking_bin_quantity + overstock_quantity %s", direction)
		case "updated":
			orderBy = fmt.Sprintf("updated_at %s", direction)
		default:
			orderBy = fmt.Sprintf("created_at %s", direction)
		}
	}
	qb = qb.OrderBy(orderBy)

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
		return nil, 0, fmt.Errorf("failed to query inventory items: %w", err)
	}
	defer rows.Close()

	var items []*domain.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, totalCount, nil
}

// scanItem maps one row onto a domain item, normalizing nullable text
// columns to empty strings.
func scanItem(row pgx.Row) (*domain.InventoryItem, error) {
	item := &domain.InventoryItem{}
	var description, category sql.NullString
	var location, pickingBinLocation, vendorID, barcodeURL sql.NullString

	err := row.Scan(
		&item.ID, &item.OrganizationID, &item.SKU, &item.Name, &description, &category,
		&item.PickingBinQuantity, &item.OverstockQuantity,
		&item.ReorderLevel, &item.PickingReorderLevel,
		&item.AutoReorderEnabled, &item.AutoReorderQuantity,
		&item.UnitCost, &item.RetailPrice,
		&location, &pickingBinLocation, &vendorID, &barcodeURL,
		&item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Description = description.String
	item.Category = category.String
	item.Location = location.String
	item.PickingBinLocation = pickingBinLocation.String
	item.VendorID = vendorID.String
	item.BarcodeURL = barcodeURL.String

	return item, nil
}
