package restore

import (
	"context"
	"fmt"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/livestore"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
)

// Planner produces restore previews. It is read-only: it never locks or
// mutates live data, so it is safe to call repeatedly and concurrently
// with ordinary application traffic.
type Planner struct {
	catalog *catalog.Catalog
	store   *livestore.Store
	storage snapshot.StorageProvider
	sealer  *snapshot.Sealer
	cfg     *config.Config
	logger  *logging.Logger
}

// NewPlanner creates a restore planner
func NewPlanner(cat *catalog.Catalog, store *livestore.Store, storage snapshot.StorageProvider,
	sealer *snapshot.Sealer, cfg *config.Config, logger *logging.Logger) *Planner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Planner{
		catalog: cat,
		store:   store,
		storage: storage,
		sealer:  sealer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Plan loads the backup's snapshot, loads current live records for every
// model it contains, and classifies each snapshot record as new, identical
// or conflicting under the given strategy.
func (p *Planner) Plan(ctx context.Context, backupID string, strategy MergeStrategy) (*RestorePlan, error) {
	if err := validateStrategy(strategy); err != nil {
		return nil, err
	}

	snap, err := loadSuccessfulSnapshot(ctx, p.catalog, p.storage, p.sealer, backupID)
	if err != nil {
		return nil, err
	}

	plan, err := buildPlan(snap, strategy, p.cfg, func(model config.ModelConfig) (map[string]snapshot.Record, error) {
		return p.store.LoadRecords(ctx, model)
	})
	if err != nil {
		return nil, err
	}

	p.logger.LogRestorePlan(backupID, string(strategy),
		plan.Summary.TotalRecords, plan.Summary.Conflicts, plan.SafeToRestore)

	return plan, nil
}

// loadSuccessfulSnapshot fetches and opens the snapshot behind a backup
// that has reached SUCCESS. Any other status blocks the restore.
func loadSuccessfulSnapshot(ctx context.Context, cat *catalog.Catalog, storage snapshot.StorageProvider,
	sealer *snapshot.Sealer, backupID string) (*snapshot.Snapshot, error) {
	record, err := cat.Get(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if record.Status != catalog.StatusSuccess {
		return nil, apperrors.NewBackupNotSuccessfulError(backupID, string(record.Status))
	}

	object, err := storage.Retrieve(ctx, backupID)
	if err != nil {
		return nil, err
	}

	snap, err := sealer.Open(object.Data)
	if err != nil {
		return nil, err
	}
	if snap.BackupID != backupID {
		return nil, apperrors.NewCorruptSnapshotError(
			fmt.Sprintf("snapshot identifies as %s but was stored under %s", snap.BackupID, backupID), nil)
	}

	return snap, nil
}
