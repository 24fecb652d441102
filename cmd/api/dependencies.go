package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	importhandler "github.com/rupeeledger/rupee-ledger/internal/domain/import/handler"
	importservice "github.com/rupeeledger/rupee-ledger/internal/domain/import/service"
	txhandler "github.com/rupeeledger/rupee-ledger/internal/domain/transaction/handler"
	txrepo "github.com/rupeeledger/rupee-ledger/internal/domain/transaction/repository"
	txservice "github.com/rupeeledger/rupee-ledger/internal/domain/transaction/service"
	"github.com/rupeeledger/rupee-ledger/internal/exchange"
	"github.com/rupeeledger/rupee-ledger/pkg/archive"
	"github.com/rupeeledger/rupee-ledger/pkg/config"
	"github.com/rupeeledger/rupee-ledger/pkg/cron"
	"github.com/rupeeledger/rupee-ledger/pkg/db"
	"github.com/rupeeledger/rupee-ledger/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Repositories
	TransactionRepo txrepo.TransactionRepository

	// Services
	RateCache          *exchange.CachedRateSource
	Converter          *exchange.Converter
	TransactionService *txservice.Service
	ImportService      *importservice.ImportService
	Scheduler          *cron.Scheduler

	// Handlers
	TransactionHandler *txhandler.Handler
	ImportHandler      *importhandler.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initMetrics()
	deps.initRepositories()
	deps.initServices()
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects the pool and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
	})
	if err != nil {
		return err
	}
	d.DB = database

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Metrics = metrics.New(d.Registry)
}

func (d *Dependencies) initRepositories() {
	d.TransactionRepo = txrepo.NewPostgresTransactionRepository(d.DB.Pool)
	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices() {
	client := exchange.NewClient(d.Config.Exchange.BaseURL, d.Config.Exchange.Timeout)
	d.RateCache = exchange.NewCachedRateSource(client)
	d.Converter = exchange.NewConverter(d.RateCache)
	d.Scheduler = cron.NewScheduler(d.RateCache, d.Config.Exchange.CacheMaxAge, d.Logger)

	d.TransactionService = txservice.NewService(d.TransactionRepo, d.Converter, d.Logger)

	d.ImportService = importservice.NewImportService(d.TransactionRepo, d.Converter, d.Logger).
		WithConversionPolicy(d.Config.Import.OnConversionError).
		WithWorkers(d.Config.Import.RateWorkers).
		WithMetrics(d.Metrics)

	d.Logger.Info("services initialized")
}

func (d *Dependencies) initHandlers() error {
	d.TransactionHandler = txhandler.NewHandler(d.TransactionService, d.Logger)
	d.ImportHandler = importhandler.NewHandler(d.ImportService, d.Config.Import.MaxFileBytes, d.Logger)

	if dir := d.Config.Import.ArchiveDir; dir != "" {
		uploads, err := archive.NewLocalArchive(dir)
		if err != nil {
			return fmt.Errorf("failed to init upload archive: %w", err)
		}
		d.ImportHandler.WithArchive(uploads)
	}

	d.Logger.Info("handlers initialized")
	return nil
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
