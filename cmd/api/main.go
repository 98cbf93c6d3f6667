// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/binwise/binwise-be/internal/adapters/db"
	"github.com/binwise/binwise-be/internal/adapters/events"
	redis_a "github.com/binwise/binwise-be/internal/adapters/redis_adapter"
	"github.com/binwise/binwise-be/internal/adapters/storage"
	"github.com/binwise/binwise-be/internal/core/ports"
	"github.com/binwise/binwise-be/internal/core/services"
	"github.com/binwise/binwise-be/internal/handlers"
	"github.com/binwise/binwise-be/internal/handlers/middleware"
	"github.com/binwise/binwise-be/internal/pkg/config"
	"github.com/binwise/binwise-be/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting binwise inventory engine",
		slog.String("version", Version),
		slog.String("build_time", BuildTime))

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel))

	ctx := context.Background()

	if err := runMigrations(ctx, cfg, slogger); err != nil {
		slogger.Error("failed to run migrations", slog.String("error", err.Error()))
		if cfg.IsProduction() {
			os.Exit(1)
		}
	}

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database       *db.Database
	redisClient    *redis.Client
	redisCache     ports.CacheRepository
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector

	inventoryHandler   *handlers.InventoryHandler
	discrepancyHandler *handlers.DiscrepancyHandler
	ruleHandler        *handlers.RuleHandler
	importHandler      *handlers.ImportHandler
	dashboardHandler   *handlers.DashboardHandler
	healthHandler      *handlers.HealthHandler
}

func (d *dependencies) cleanup() {
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.database != nil {
		d.database.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, slogger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	slogger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name))

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, slogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = database

	slogger.Info("connecting to Redis",
		slog.String("host", cfg.Redis.Host),
		slog.String("port", cfg.Redis.Port))

	redisClient := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		DialTimeout:     cfg.Redis.DialTimeout,
		ReadTimeout:     cfg.Redis.ReadTimeout,
		WriteTimeout:    cfg.Redis.WriteTimeout,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		PoolTimeout:     cfg.Redis.PoolTimeout,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	deps.redisClient = redisClient
	deps.redisCache = redis_a.NewCache(redisClient, cfg.Redis.TTL, slogger)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	deps.asynqClient = asynq.NewClient(asynqRedisOpt)
	deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)

	storageClient, err := storage.NewS3Storage(ctx, &storage.S3Config{
		Region:          cfg.AWS.Region,
		Bucket:          cfg.AWS.S3Bucket,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Endpoint:        cfg.AWS.S3Endpoint,
		UsePathStyle:    cfg.AWS.UsePathStyle,
	}, slogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// Repositories
	inventoryRepo := db.NewInventoryRepository(database, slogger)
	discrepancyRepo := db.NewDiscrepancyRepository(database, slogger)
	ruleRepo := db.NewRuleRepository(database, slogger)
	locationRepo := db.NewLocationRepository(database, slogger)
	movementRepo := db.NewMovementRepository(database, slogger)
	importJobRepo := db.NewImportJobRepository(database, slogger)

	// Core services
	publisher := events.NewAsynqPublisher(deps.asynqClient, slogger)
	ledger := services.NewStockLedger(inventoryRepo, publisher, deps.redisCache,
		cfg.Reconciliation.LedgerWriteTimeout, slogger)
	inventoryService := services.NewInventoryService(ledger, inventoryRepo, movementRepo, deps.redisCache, slogger)
	discrepancyService := services.NewDiscrepancyService(ledger, discrepancyRepo, movementRepo, publisher, slogger)
	importService := services.NewImportService(ledger, inventoryRepo, locationRepo, importJobRepo, movementRepo, publisher, slogger)

	// Handlers
	maxFileSize := int64(cfg.FileProcessing.ImportMaxSizeMB) * 1024 * 1024
	deps.inventoryHandler = handlers.NewInventoryHandler(inventoryService, slogger)
	deps.discrepancyHandler = handlers.NewDiscrepancyHandler(discrepancyService, slogger)
	deps.ruleHandler = handlers.NewRuleHandler(ruleRepo, slogger)
	deps.importHandler = handlers.NewImportHandler(deps.asynqClient, importService,
		storageClient, slogger, maxFileSize, cfg.FileProcessing.TempDir)
	deps.dashboardHandler = handlers.NewDashboardHandler(inventoryService, slogger)
	deps.healthHandler = handlers.NewHealthHandler(database, redisClient, deps.asynqInspector, cfg, slogger)

	slogger.Info("all dependencies initialized successfully")
	return deps, nil
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, slogger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	// Middleware chain, innermost first.
	var handler http.Handler = mux
	handler = middleware.Organization(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Logging(slogger)(handler)
	handler = middleware.Recovery(slogger)(handler)

	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}
	handler = middleware.SecureHeaders(handler)

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(slogger.Handler(), slog.LevelError),
	}
}

func registerRoutes(mux *http.ServeMux, deps *dependencies, cfg *config.Config) {
	apiV1 := "/api/v1"

	mux.HandleFunc("GET /health", deps.healthHandler.Health)
	mux.HandleFunc("GET /ready", deps.healthHandler.Readiness)

	// Inventory
	mux.HandleFunc("GET "+apiV1+"/inventory", deps.inventoryHandler.ListItems)
	mux.HandleFunc("POST "+apiV1+"/inventory", deps.inventoryHandler.CreateItem)
	mux.HandleFunc("GET "+apiV1+"/inventory/{id}", deps.inventoryHandler.GetItem)
	mux.HandleFunc("GET "+apiV1+"/inventory/{id}/movements", deps.inventoryHandler.GetMovements)

	// Cycle count reconciliation
	mux.HandleFunc("POST "+apiV1+"/discrepancies/report-count", deps.discrepancyHandler.ReportCount)
	mux.HandleFunc("GET "+apiV1+"/discrepancies", deps.discrepancyHandler.List)
	mux.HandleFunc("POST "+apiV1+"/discrepancies/{id}/resolve", deps.discrepancyHandler.Resolve)

	// Automation rules
	mux.HandleFunc("GET "+apiV1+"/rules", deps.ruleHandler.ListRules)
	mux.HandleFunc("POST "+apiV1+"/rules", deps.ruleHandler.CreateRule)
	mux.HandleFunc("GET "+apiV1+"/rules/{id}", deps.ruleHandler.GetRule)

	// Bulk import
	mux.HandleFunc("POST "+apiV1+"/imports", deps.importHandler.Upload)
	mux.HandleFunc("GET "+apiV1+"/imports/{jobId}", deps.importHandler.Status)
	mux.HandleFunc("POST "+apiV1+"/imports/{jobId}/confirm", deps.importHandler.Confirm)
	mux.HandleFunc("POST "+apiV1+"/imports/{jobId}/cancel", deps.importHandler.Cancel)

	// Dashboard
	mux.HandleFunc("GET "+apiV1+"/dashboard", deps.dashboardHandler.GetDashboard)

	if cfg.Server.EnablePprof && cfg.IsDevelopment() {
		mux.HandleFunc("GET /debug/pprof/", http.HandlerFunc(http.DefaultServeMux.ServeHTTP))
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, slogger *slog.Logger) error {
	slogger.Info("running database migrations")

	return db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}, slogger, 3)
}
