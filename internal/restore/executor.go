package restore

import (
	"context"
	"database/sql"
	"time"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/livestore"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
)

const lockPrefix = "snapshot_restore:"

// Executor commits restores. Every call recomputes the plan inside the
// transaction that applies it, so a stale preview can never leak changed
// live data into a commit.
type Executor struct {
	catalog *catalog.Catalog
	store   *livestore.Store
	storage snapshot.StorageProvider
	sealer  *snapshot.Sealer
	cfg     *config.Config
	logger  *logging.Logger
}

// NewExecutor creates a restore executor
func NewExecutor(cat *catalog.Catalog, store *livestore.Store, storage snapshot.StorageProvider,
	sealer *snapshot.Sealer, cfg *config.Config, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Executor{
		catalog: cat,
		store:   store,
		storage: storage,
		sealer:  sealer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Execute applies a backup to live state under the given strategy. All
// writes happen in one transaction: either every model's changes commit
// or none do. An unsafe REPLACE plan is rejected unless force is set.
func (e *Executor) Execute(ctx context.Context, backupID string, strategy MergeStrategy, force bool) (*RestoreResult, error) {
	if err := validateStrategy(strategy); err != nil {
		return nil, err
	}

	started := time.Now()

	snap, err := loadSuccessfulSnapshot(ctx, e.catalog, e.storage, e.sealer, backupID)
	if err != nil {
		return nil, err
	}

	// Advisory locks are per-session, so the lock and the transaction
	// must share one connection.
	conn, err := e.store.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	lockName := lockPrefix + backupID
	acquired, err := e.store.AcquireLock(ctx, conn, lockName)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperrors.NewRestoreInProgressError(backupID)
	}
	defer func() {
		if releaseErr := e.store.ReleaseLock(context.WithoutCancel(ctx), conn, lockName); releaseErr != nil {
			e.logger.WithField("backup_id", backupID).Warnf("Failed to release restore lock: %v", releaseErr)
		}
	}()

	tx, err := e.store.BeginRestoreTx(ctx, conn)
	if err != nil {
		return nil, err
	}

	result, err := e.applyInTx(ctx, tx, snap, strategy, force)
	if err != nil {
		tx.Rollback()
		e.logger.LogRestoreExecution(backupID, string(strategy), 0, 0, 0, time.Since(started), err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		wrapped := apperrors.NewRestoreFailedError(backupID, err)
		e.logger.LogRestoreExecution(backupID, string(strategy), 0, 0, 0, time.Since(started), wrapped)
		return nil, wrapped
	}

	result.BackupID = backupID
	result.Strategy = strategy
	result.DurationMs = time.Since(started).Milliseconds()

	e.logger.LogRestoreExecution(backupID, string(strategy),
		result.RecordsCreated, result.RecordsUpdated, result.RecordsSkipped,
		time.Since(started), nil)

	return result, nil
}

// applyInTx re-plans against the transaction's consistent view, checks
// the safety gate, and applies the plan record by record.
func (e *Executor) applyInTx(ctx context.Context, tx *sql.Tx, snap *snapshot.Snapshot,
	strategy MergeStrategy, force bool) (*RestoreResult, error) {
	plan, liveByModel, err := buildPlanIndexed(snap, strategy, e.cfg, func(model config.ModelConfig) (map[string]snapshot.Record, error) {
		return e.store.LoadRecordsTx(ctx, tx, model)
	})
	if err != nil {
		return nil, err
	}

	if !plan.SafeToRestore && !force {
		return nil, apperrors.NewUnsafeRestoreError(snap.BackupID, plan.Summary.Conflicts)
	}

	result := &RestoreResult{}

	for _, set := range snap.ModelSets {
		model := modelFor(e.cfg, set)

		modelResult, err := e.applyModelSet(ctx, tx, set, model, liveByModel[set.Name], strategy)
		if err != nil {
			return nil, apperrors.NewRestoreFailedError(snap.BackupID, err).
				WithContext("model", set.Name).
				WithContext("records_created", result.RecordsCreated+modelResult.RecordsCreated).
				WithContext("records_updated", result.RecordsUpdated+modelResult.RecordsUpdated)
		}

		result.Models = append(result.Models, modelResult)
		result.RecordsCreated += modelResult.RecordsCreated
		result.RecordsUpdated += modelResult.RecordsUpdated
		result.RecordsSkipped += modelResult.RecordsSkipped
	}

	return result, nil
}

func (e *Executor) applyModelSet(ctx context.Context, tx *sql.Tx, set snapshot.ModelSet,
	model config.ModelConfig, live map[string]snapshot.Record, strategy MergeStrategy) (ModelResult, error) {
	result := ModelResult{Model: set.Name}

	for _, record := range set.Records {
		key := livestore.KeyString(record[model.PrimaryKey])
		liveRecord, exists := live[key]

		if !exists {
			if err := e.store.InsertRecord(ctx, tx, model, record); err != nil {
				return result, err
			}
			result.RecordsCreated++
			continue
		}

		if businessFieldsEqual(record, liveRecord, model) {
			result.RecordsSkipped++
			continue
		}

		var changes snapshot.Record
		switch strategy {
		case StrategyReplace:
			changes = replaceChanges(record, liveRecord, model)
		case StrategyMerge:
			changes = mergeChanges(record, liveRecord, model)
		case StrategySkip:
			result.RecordsSkipped++
			continue
		}

		// A conflict whose strategy leaves nothing to write is a skip,
		// so counts reflect actual changes only.
		if len(changes) == 0 {
			result.RecordsSkipped++
			continue
		}

		if err := e.store.UpdateRecord(ctx, tx, model, liveRecord[model.PrimaryKey], changes); err != nil {
			return result, err
		}
		result.RecordsUpdated++
	}

	return result, nil
}
