// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/binwise/binwise-be/internal/adapters/db"
	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/pkg/config"
	"github.com/binwise/binwise-be/internal/pkg/logger"
)

func main() {
	var (
		orgIDFlag = flag.String("org", "", "organization UUID to seed (random if empty)")
		migrate   = flag.Bool("migrate", true, "run migrations before seeding")
	)
	flag.Parse()

	slogger := logger.SetupLogger("info", "text")

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	orgID := uuid.New()
	if *orgIDFlag != "" {
		orgID, err = uuid.Parse(*orgIDFlag)
		if err != nil {
			slogger.Error("invalid organization UUID", slog.String("org", *orgIDFlag))
			os.Exit(1)
		}
	}

	ctx := context.Background()

	if *migrate {
		if err := db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
			DatabaseURL: cfg.GetDatabaseURL(),
			TableName:   "schema_migrations",
			SchemaName:  "public",
		}, slogger, 3); err != nil {
			slogger.Error("failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	}, slogger)
	if err != nil {
		slogger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	if err := seed(ctx, database, orgID, slogger); err != nil {
		slogger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger.Info("seeding complete", slog.String("organization_id", orgID.String()))
}

func seed(ctx context.Context, database *db.Database, orgID uuid.UUID, slogger *slog.Logger) error {
	locationRepo := db.NewLocationRepository(database, slogger)
	inventoryRepo := db.NewInventoryRepository(database, slogger)
	ruleRepo := db.NewRuleRepository(database, slogger)

	locations := []domain.Location{
		{ID: uuid.New(), OrganizationID: orgID, Name: "Warehouse A", Zone: "A", Aisle: "1", Shelf: "1", CreatedAt: time.Now()},
		{ID: uuid.New(), OrganizationID: orgID, Name: "Warehouse B", Zone: "B", Aisle: "2", Shelf: "3", CreatedAt: time.Now()},
		{ID: uuid.New(), OrganizationID: orgID, Name: "Bin A-01", Zone: "A", Aisle: "1", Shelf: "picking", CreatedAt: time.Now()},
		{ID: uuid.New(), OrganizationID: orgID, Name: "Bin A-02", Zone: "A", Aisle: "1", Shelf: "picking", CreatedAt: time.Now()},
	}
	for i := range locations {
		if err := locationRepo.Insert(ctx, &locations[i]); err != nil {
			return fmt.Errorf("failed to insert location %s: %w", locations[i].Name, err)
		}
	}

	items := []domain.InventoryItem{
		{
			SKU: "CAB-750-001", Name: "Cabernet Sauvignon 750ml",
			Category:           "red",
			PickingBinQuantity: 12, OverstockQuantity: 48,
			ReorderLevel: 24, PickingReorderLevel: 6,
			UnitCost:    decimal.NewFromFloat(11.50),
			RetailPrice: decimal.NewFromFloat(24.99),
			Location:    "Warehouse A", PickingBinLocation: "Bin A-01",
			VendorID: "vintner-west",
		},
		{
			SKU: "CHD-750-002", Name: "Chardonnay 750ml",
			Category:           "white",
			PickingBinQuantity: 8, OverstockQuantity: 36,
			ReorderLevel: 20, PickingReorderLevel: 4,
			UnitCost:    decimal.NewFromFloat(9.25),
			RetailPrice: decimal.NewFromFloat(19.99),
			Location:    "Warehouse A", PickingBinLocation: "Bin A-02",
			VendorID:           "vintner-west",
			AutoReorderEnabled: true, AutoReorderQuantity: 24,
		},
		{
			SKU: "PNO-750-003", Name: "Pinot Noir 750ml",
			Category:           "red",
			PickingBinQuantity: 0, OverstockQuantity: 3,
			ReorderLevel: 12, PickingReorderLevel: 6,
			UnitCost:    decimal.NewFromFloat(14.00),
			RetailPrice: decimal.NewFromFloat(29.99),
			Location:    "Warehouse B",
			VendorID:    "coastal-imports",
		},
		{
			SKU: "RSL-750-004", Name: "Riesling 750ml",
			Category:           "white",
			PickingBinQuantity: 0, OverstockQuantity: 0,
			ReorderLevel: 10, PickingReorderLevel: 5,
			UnitCost:    decimal.NewFromFloat(8.75),
			RetailPrice: decimal.NewFromFloat(17.49),
			Location:    "Warehouse B",
			VendorID:    "coastal-imports",
		},
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrganizationID = orgID
		items[i].PrepareForStorage()
		if err := inventoryRepo.Insert(ctx, &items[i]); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", items[i].SKU, err)
		}
	}

	rules := []domain.AutomationRule{
		{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Name:           "Low stock alert",
			IsActive:       true,
			Trigger:        domain.TriggerStockLevelChange,
			Condition:      &domain.RuleCondition{Field: "quantity", Operator: domain.OperatorLessThan, Value: 12},
			Action: domain.RuleAction{
				Type:    domain.ActionSendNotification,
				Message: "{itemName} ({sku}) is low: {quantity} left at {location}",
			},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Name:           "Stock change audit trail",
			IsActive:       true,
			Trigger:        domain.TriggerStockLevelChange,
			Action: domain.RuleAction{
				Type:    domain.ActionSendNotification,
				Message: "{itemName} moved from {oldQuantity} to {quantity}",
			},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}
	for i := range rules {
		if err := ruleRepo.Insert(ctx, &rules[i]); err != nil {
			return fmt.Errorf("failed to insert rule %s: %w", rules[i].Name, err)
		}
	}

	slogger.Info("seeded demo data",
		slog.Int("locations", len(locations)),
		slog.Int("items", len(items)),
		slog.Int("rules", len(rules)))

	return nil
}
