// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/binwise/binwise-be/internal/adapters/db"
	"github.com/binwise/binwise-be/internal/adapters/events"
	redis_a "github.com/binwise/binwise-be/internal/adapters/redis_adapter"
	"github.com/binwise/binwise-be/internal/adapters/storage"
	"github.com/binwise/binwise-be/internal/core/services"
	"github.com/binwise/binwise-be/internal/pkg/config"
	"github.com/binwise/binwise-be/internal/pkg/logger"
	"github.com/binwise/binwise-be/internal/workers"
	"github.com/redis/go-redis/v9"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")
	slogger.Info("starting binwise worker")

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx := context.Background()

	if err := run(ctx, cfg, slogger); err != nil {
		slogger.Error("worker exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, slogger *slog.Logger) error {
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
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, slogger)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	asynqClient := asynq.NewClient(asynqRedisOpt)
	defer asynqClient.Close()

	storageClient, err := storage.NewS3Storage(ctx, &storage.S3Config{
		Region:          cfg.AWS.Region,
		Bucket:          cfg.AWS.S3Bucket,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Endpoint:        cfg.AWS.S3Endpoint,
		UsePathStyle:    cfg.AWS.UsePathStyle,
	}, slogger)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// Repositories and core services
	inventoryRepo := db.NewInventoryRepository(database, slogger)
	discrepancyRepo := db.NewDiscrepancyRepository(database, slogger)
	ruleRepo := db.NewRuleRepository(database, slogger)
	locationRepo := db.NewLocationRepository(database, slogger)
	movementRepo := db.NewMovementRepository(database, slogger)
	importJobRepo := db.NewImportJobRepository(database, slogger)

	publisher := events.NewAsynqPublisher(asynqClient, slogger)
	ledger := services.NewStockLedger(inventoryRepo, publisher, cache,
		cfg.Reconciliation.LedgerWriteTimeout, slogger)
	automationService := services.NewAutomationService(ruleRepo, publisher, slogger)
	importService := services.NewImportService(ledger, inventoryRepo, locationRepo,
		importJobRepo, movementRepo, publisher, slogger)

	// Processors
	automationProcessor := workers.NewAutomationProcessor(automationService, cache, slogger)
	notificationProcessor := workers.NewNotificationProcessor(database, slogger)
	importProcessor := workers.NewImportProcessor(importService, storageClient, slogger)
	cleanupProcessor := workers.NewCleanupProcessor(database, discrepancyRepo, cfg, slogger)

	srv := asynq.NewServer(asynqRedisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		Logger:          newAsynqLogger(slogger),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slogger.ErrorContext(ctx, "task failed",
				slog.String("type", task.Type()),
				slog.String("error", err.Error()))
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(events.TypeStockChange, automationProcessor.HandleStockChange)
	mux.HandleFunc(events.TypeNotification, notificationProcessor.RecordActivity)
	mux.HandleFunc(workers.TypeImportFile, importProcessor.ProcessFile)
	mux.HandleFunc(workers.TypeImportCommit, importProcessor.CommitJob)
	mux.HandleFunc(workers.TypeCleanupOldData, cleanupProcessor.CleanupOldData)
	mux.HandleFunc(workers.TypeCleanupTempFiles, cleanupProcessor.CleanupTempFiles)

	scheduler := asynq.NewScheduler(asynqRedisOpt, &asynq.SchedulerOpts{
		Logger: newAsynqLogger(slogger),
	})
	if _, err := scheduler.Register("0 3 * * *",
		asynq.NewTask(workers.TypeCleanupOldData, nil), asynq.Queue("low")); err != nil {
		return fmt.Errorf("failed to register cleanup schedule: %w", err)
	}
	if _, err := scheduler.Register("@every 1h",
		asynq.NewTask(workers.TypeCleanupTempFiles, nil), asynq.Queue("low")); err != nil {
		return fmt.Errorf("failed to register temp file cleanup schedule: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		slogger.Info("starting asynq server",
			slog.Int("concurrency", cfg.Asynq.Concurrency))
		errCh <- srv.Run(mux)
	}()
	go func() {
		errCh <- scheduler.Run()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-errCh:
		return err
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))
		scheduler.Shutdown()
		srv.Shutdown()
		slogger.Info("worker shutdown complete")
		return nil
	}
}

// asynqLogger adapts slog to the asynq logging interface.
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	return &asynqLogger{logger: l.With(slog.String("component", "asynq"))}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
