// test/helpers/helpers.go
package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/binwise/binwise-be/internal/adapters/db"
	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/pkg/config"
)

// TestDB represents a test database instance
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// SetupTestDB creates a PostgreSQL container for integration tests
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_binwise",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_binwise",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		EnableQueryLogging: testing.Verbose(),
	}

	// Wait for database to be ready
	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")

	ctx := context.Background()
	migrationConfig := &db.MigrationConfig{
		DatabaseURL: fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port,
			dbConfig.Database, dbConfig.SSLMode),
		TableName:  "schema_migrations",
		SchemaName: "public",
	}

	err = db.RunMigrationsWithRetry(ctx, migrationConfig, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates a mock Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// SetupMockDB creates a mock database for unit testing
func SetupMockDB(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock DB")

	t.Cleanup(func() {
		db.Close()
	})

	return mock, db
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "test-api",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Database: config.DatabaseConfig{
			Host:               "localhost",
			Port:               "5432",
			User:               "test",
			Password:           "test",
			Name:               "test_binwise",
			SSLMode:            "disable",
			MaxConnections:     10,
			MinConnections:     2,
			EnableQueryLogging: true,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			DB:       0,
			TTL:      time.Hour,
			PoolSize: 10,
		},
		FileProcessing: config.FileProcessingConfig{
			ImportMaxSizeMB:   25,
			ProcessingTimeout: 5 * time.Minute,
			TempDir:           "/tmp",
			CleanupInterval:   time.Hour,
		},
		Reconciliation: config.ReconciliationConfig{
			LedgerWriteTimeout:   5 * time.Second,
			StaleDiscrepancyDays: 30,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// CreateTestItem creates a test inventory item
func CreateTestItem(overrides ...func(*domain.InventoryItem)) *domain.InventoryItem {
	item := &domain.InventoryItem{
		ID:                  uuid.New(),
		OrganizationID:      uuid.New(),
		SKU:                 "CAB-750-001",
		Name:                "Cabernet Sauvignon 750ml",
		Description:         "Estate cabernet, 2021 vintage",
		Category:            "red",
		PickingBinQuantity:  12,
		OverstockQuantity:   48,
		ReorderLevel:        24,
		PickingReorderLevel: 6,
		UnitCost:            decimal.NewFromFloat(11.50),
		RetailPrice:         decimal.NewFromFloat(24.99),
		Location:            "Warehouse A",
		PickingBinLocation:  "Bin A-01",
		VendorID:            "vintner-west",
		Version:             1,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}

	for _, override := range overrides {
		override(item)
	}

	return item
}

// CreateTestItems creates multiple test inventory items sharing one organization
func CreateTestItems(orgID uuid.UUID, count int) []domain.InventoryItem {
	items := make([]domain.InventoryItem, count)

	categories := []string{"red", "white", "rose", "sparkling"}

	for i := 0; i < count; i++ {
		items[i] = *CreateTestItem(func(item *domain.InventoryItem) {
			item.OrganizationID = orgID
			item.SKU = fmt.Sprintf("TST-750-%03d", i+1)
			item.Name = fmt.Sprintf("Test Wine %d", i+1)
			item.Category = categories[i%len(categories)]
			item.PickingBinQuantity = i % 10
			item.OverstockQuantity = (i * 6) % 60
		})
	}

	return items
}

// CreateTestRule creates an active stock-level automation rule
func CreateTestRule(overrides ...func(*domain.AutomationRule)) *domain.AutomationRule {
	rule := &domain.AutomationRule{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Name:           "Low stock alert",
		IsActive:       true,
		Trigger:        domain.TriggerStockLevelChange,
		Condition: &domain.RuleCondition{
			Field:    "quantity",
			Operator: domain.OperatorLessThan,
			Value:    10,
		},
		Action: domain.RuleAction{
			Type:    domain.ActionSendNotification,
			Message: "{itemName} ({sku}) is low: {quantity} left at {location}",
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, override := range overrides {
		override(rule)
	}

	return rule
}

// CreateTestDiscrepancy creates a pending discrepancy record against item
func CreateTestDiscrepancy(item *domain.InventoryItem, overrides ...func(*domain.DiscrepancyRecord)) *domain.DiscrepancyRecord {
	record := domain.NewDiscrepancyRecord(item, domain.LocationPickingBin,
		item.PickingBinLocation, item.PickingBinQuantity, item.PickingBinQuantity-2,
		"cycle count", "tester")

	for _, override := range overrides {
		override(&record)
	}

	return &record
}

// CreateTestImportLine creates an import file line
func CreateTestImportLine(overrides ...func(*domain.ImportLine)) domain.ImportLine {
	line := domain.ImportLine{
		RowNumber:           2,
		SKU:                 "CHD-750-002",
		Name:                "Chardonnay 750ml",
		Category:            "white",
		PickingBinQuantity:  6,
		OverstockQuantity:   24,
		ReorderLevel:        20,
		PickingReorderLevel: 4,
		UnitCost:            decimal.NewFromFloat(9.25),
		RetailPrice:         decimal.NewFromFloat(19.99),
		Location:            "Warehouse A",
		PickingBinLocation:  "Bin A-02",
		VendorID:            "vintner-west",
	}

	for _, override := range overrides {
		override(&line)
	}

	return line
}

// CompareItems compares the identity and stock fields of two inventory items
func CompareItems(t *testing.T, expected, actual *domain.InventoryItem) {
	t.Helper()

	require.Equal(t, expected.SKU, actual.SKU)
	require.Equal(t, expected.Name, actual.Name)
	require.Equal(t, expected.Category, actual.Category)
	require.Equal(t, expected.PickingBinQuantity, actual.PickingBinQuantity)
	require.Equal(t, expected.OverstockQuantity, actual.OverstockQuantity)
	require.Equal(t, expected.ReorderLevel, actual.ReorderLevel)
	require.Equal(t, expected.Location, actual.Location)
	require.True(t, expected.UnitCost.Equal(actual.UnitCost))
	require.True(t, expected.RetailPrice.Equal(actual.RetailPrice))
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}

// TruncateAllTables truncates all tables in the test database
func TruncateAllTables(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	tables := []string{
		"activity_logs",
		"stock_movements",
		"import_jobs",
		"discrepancies",
		"automation_rules",
		"locations",
		"inventory_items",
	}

	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "Failed to truncate table: %s", table)
	}
}

// CreateTempFile creates a temporary file for testing
func CreateTempFile(t *testing.T, content []byte, extension string) string {
	t.Helper()

	file, err := os.CreateTemp("", fmt.Sprintf("test-*%s", extension))
	require.NoError(t, err, "Failed to create temp file")

	_, err = file.Write(content)
	require.NoError(t, err, "Failed to write to temp file")

	file.Close()

	t.Cleanup(func() {
		os.Remove(file.Name())
	})

	return file.Name()
}
