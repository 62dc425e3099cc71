// Command worker launches the tradeledger processing worker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foliostack/tradeledger/internal/config"
	"github.com/foliostack/tradeledger/internal/feeschedule"
	"github.com/foliostack/tradeledger/internal/marketdata"
	"github.com/foliostack/tradeledger/internal/observability"
	"github.com/foliostack/tradeledger/internal/orchestrator"
	"github.com/foliostack/tradeledger/internal/persistence/migrations"
	"github.com/foliostack/tradeledger/internal/tabular"
	"github.com/foliostack/tradeledger/internal/telemetry"
	"github.com/foliostack/tradeledger/internal/tracker"
	"github.com/foliostack/tradeledger/internal/workqueue"
	"github.com/foliostack/tradeledger/lib/async"
)

const (
	defaultConfigPath    = "config/worker.yaml"
	defaultMigrationsDir = "db/migrations"
	workerLoggerPrefix   = "worker "
	shutdownTimeout      = 30 * time.Second
)

func main() {
	cfgPath := flag.String("config", defaultConfigPath, "Path to worker configuration file")
	migrationsDir := flag.String("migrations", defaultMigrationsDir, "Directory containing SQL migrations")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stdout, workerLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
	observability.SetLogger(newSlogAdapter())
	runtimeMetrics := observability.NewRuntimeMetrics()
	observability.SetMetrics(runtimeMetrics)

	settings, loadedFromFile, err := loadSettings(*cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using environment and defaults")
	}
	logger.Printf("configuration initialised: env=%s queue=%s", settings.Environment, settings.Queue.Name)

	telemetryProvider, err := initTelemetry(ctx, logger, settings)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}

	trackerStore, pool, err := initTracker(ctx, logger, settings, *migrationsDir)
	if err != nil {
		logger.Fatalf("initialise execution store: %v", err)
	}

	fees, err := feeschedule.LoadFile(settings.FeeSchedulePath)
	if err != nil {
		logger.Fatalf("load fee schedule: %v", err)
	}
	logger.Printf("fee schedules loaded: participants=%d", len(fees.Participants()))

	var oracle marketdata.Oracle
	if settings.Oracle.BaseURL != "" {
		oracle = marketdata.NewHTTPClient(settings.Oracle.BaseURL, settings.Oracle.HTTPTimeout,
			settings.Oracle.RatePerSec, settings.Oracle.Burst)
		logger.Printf("price oracle configured: %s", settings.Oracle.BaseURL)
	} else {
		logger.Print("no price oracle configured; market columns will stay empty")
	}

	sheets := tabular.NewMemoryStore()
	queue := workqueue.NewMemoryQueue(workqueue.MemoryConfig{BufferSize: settings.Worker.QueueDepth})
	dlq := observability.NewDeadLetterQueue(settings.DLQCapacity)
	bus := observability.NewInMemoryTelemetryBus(64)

	workers, err := async.NewPool(settings.Worker.Concurrency, settings.Worker.QueueDepth)
	if err != nil {
		logger.Fatalf("initialise worker pool: %v", err)
	}

	pipeline := orchestrator.NewPipeline(sheets, fees, trackerStore, oracle,
		settings.Oracle.CacheTTL, bus, "zerodha")
	orch := orchestrator.New(orchestrator.Config{
		QueueName:       settings.Queue.Name,
		MaxRetries:      settings.Retry.MaxRetries,
		InitialInterval: settings.Retry.InitialInterval,
		MaxInterval:     settings.Retry.MaxInterval,
		Multiplier:      settings.Retry.Multiplier,
	}, queue, pipeline, trackerStore, dlq, bus, workers)

	if err := orch.Start(ctx); err != nil {
		logger.Fatalf("start orchestrator: %v", err)
	}
	logger.Print("worker started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	queue.Close()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: orchestrator: %v", err)
	}
	bus.Close()
	if letters := dlq.Drain(); len(letters) > 0 {
		logger.Printf("shutdown: %d dead letters unprocessed", len(letters))
	}
	counters := runtimeMetrics.Snapshot()
	logger.Printf("pipeline counters: tasks=%v retries=%v stage_ms=%v",
		counters.TasksByState, counters.RetriesByCode, counters.StageMillis)
	if pool != nil {
		pool.Close()
	}
	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: telemetry: %v", err)
	}
	logger.Print("shutdown completed")
}

func loadSettings(path string) (config.Settings, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.FromEnv(), false, nil
		}
		return config.Settings{}, false, err
	}
	settings, err := config.FromFile(path)
	if err != nil {
		return config.Settings{}, false, err
	}
	return settings, true, nil
}

func initTelemetry(ctx context.Context, logger *log.Logger, settings config.Settings) (*telemetry.Provider, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Environment = string(settings.Environment)

	provider, err := telemetry.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if cfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", cfg.OTLPEndpoint, cfg.ServiceName)
	} else {
		logger.Print("telemetry disabled")
	}
	return provider, nil
}

// initTracker prefers Postgres when a DSN is configured and falls back to
// the in-memory store otherwise.
func initTracker(ctx context.Context, logger *log.Logger, settings config.Settings, migrationsDir string) (tracker.Store, *pgxpool.Pool, error) {
	if settings.Postgres.DSN == "" {
		logger.Print("no postgres DSN configured; using in-memory execution store")
		return tracker.NewMemoryStore(), nil, nil
	}

	if err := migrations.Apply(ctx, settings.Postgres.DSN, migrationsDir, logger); err != nil {
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(settings.Postgres.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if settings.Postgres.PoolSize > 0 {
		poolCfg.MaxConns = int32(settings.Postgres.PoolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create postgres pool: %w", err)
	}
	logger.Printf("postgres execution store ready: max_conns=%d", poolCfg.MaxConns)
	return tracker.NewPostgresStore(pool), pool, nil
}
