package cmd

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	"snapshot-restore/internal/livestore"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/restore"
	"snapshot-restore/internal/snapshot"
	"snapshot-restore/internal/verify"
	"snapshot-restore/internal/worker"
)

// app wires every component a subcommand can need. Subcommands build it
// once and close it when done.
type app struct {
	cfg    *config.Config
	logger *logging.Logger

	catalogDB *sql.DB
	liveDB    *sql.DB

	catalog  *catalog.Catalog
	store    *livestore.Store
	storage  snapshot.StorageProvider
	sealer   *snapshot.Sealer
	verifier *verify.Verifier
	runner   *worker.Runner
	planner  *restore.Planner
	executor *restore.Executor
	watchdog *worker.Watchdog
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	catalogDB, err := openDatabase(ctx, cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	liveDB, err := openDatabase(ctx, cfg.LiveStore)
	if err != nil {
		catalogDB.Close()
		return nil, fmt.Errorf("failed to connect to live database: %w", err)
	}

	cat := catalog.NewCatalog(catalogDB, logger, catalog.Options{
		FreshnessWindow: cfg.Backup.FreshnessWindowDuration(),
		SummaryWindow:   cfg.Backup.SummaryWindow,
	})
	if err := cat.EnsureSchema(ctx); err != nil {
		catalogDB.Close()
		liveDB.Close()
		return nil, fmt.Errorf("failed to prepare backup catalog: %w", err)
	}

	storage, err := snapshot.NewStorageProviderFactory().CreateStorageProvider(ctx, cfg.Storage)
	if err != nil {
		catalogDB.Close()
		liveDB.Close()
		return nil, fmt.Errorf("failed to initialize snapshot storage: %w", err)
	}

	sealer, err := snapshot.NewSealer(cfg.Compression, cfg.Encryption)
	if err != nil {
		catalogDB.Close()
		liveDB.Close()
		return nil, fmt.Errorf("failed to initialize snapshot sealer: %w", err)
	}

	store := livestore.NewStore(liveDB, logger)
	verifier := verify.NewVerifier(cat, storage, sealer, cfg, logger)
	runner := worker.NewRunner(cat, store, storage, sealer, verifier, cfg, logger)
	planner := restore.NewPlanner(cat, store, storage, sealer, cfg, logger)
	executor := restore.NewExecutor(cat, store, storage, sealer, cfg, logger)
	watchdog := worker.NewWatchdog(cat, cfg, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		catalogDB: catalogDB,
		liveDB:    liveDB,
		catalog:   cat,
		store:     store,
		storage:   storage,
		sealer:    sealer,
		verifier:  verifier,
		runner:    runner,
		planner:   planner,
		executor:  executor,
		watchdog:  watchdog,
	}, nil
}

func (a *app) Close() {
	a.runner.Wait()
	a.catalogDB.Close()
	a.liveDB.Close()
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
