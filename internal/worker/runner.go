package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	"snapshot-restore/internal/livestore"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
	"snapshot-restore/internal/verify"
)

// Runner executes backup jobs. Enqueue is fire-and-forget: the caller
// gets a PENDING record back immediately and polls the catalog for the
// outcome, which stays correct across process restarts because every
// transition is persisted.
type Runner struct {
	catalog  *catalog.Catalog
	store    *livestore.Store
	storage  snapshot.StorageProvider
	sealer   *snapshot.Sealer
	verifier *verify.Verifier
	cfg      *config.Config
	logger   *logging.Logger

	wg  sync.WaitGroup
	now func() time.Time
}

// NewRunner creates a backup job runner
func NewRunner(cat *catalog.Catalog, store *livestore.Store, storage snapshot.StorageProvider,
	sealer *snapshot.Sealer, verifier *verify.Verifier, cfg *config.Config, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Runner{
		catalog:  cat,
		store:    store,
		storage:  storage,
		sealer:   sealer,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Enqueue records a PENDING backup and starts the job in the background.
// The job carries its own timeout so it outlives the triggering request.
func (r *Runner) Enqueue(ctx context.Context, backupType catalog.BackupType, quick, verifyAfter bool) (*catalog.BackupRecord, error) {
	record, err := r.catalog.BeginBackup(ctx, backupType, quick)
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		jobCtx, cancel := context.WithTimeout(context.Background(), r.cfg.Backup.JobTimeoutDuration())
		defer cancel()
		r.runJob(jobCtx, record, verifyAfter)
	}()

	return record, nil
}

// Run executes a backup synchronously and returns the final record
func (r *Runner) Run(ctx context.Context, backupType catalog.BackupType, quick, verifyAfter bool) (*catalog.BackupRecord, error) {
	record, err := r.catalog.BeginBackup(ctx, backupType, quick)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithTimeout(ctx, r.cfg.Backup.JobTimeoutDuration())
	defer cancel()
	r.runJob(jobCtx, record, verifyAfter)

	return r.catalog.Get(ctx, record.ID)
}

// Wait blocks until every in-flight backup job has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) runJob(ctx context.Context, record *catalog.BackupRecord, verifyAfter bool) {
	started := time.Now()

	if err := r.catalog.MarkRunning(ctx, record.ID); err != nil {
		r.logger.WithField("backup_id", record.ID).Errorf("Failed to mark backup running: %v", err)
		return
	}

	snap, err := r.dump(ctx, record)
	if err != nil {
		r.fail(ctx, record, started, err)
		return
	}

	data, checksum, err := r.sealer.Seal(snap)
	if err != nil {
		r.fail(ctx, record, started, err)
		return
	}

	object := &snapshot.Object{
		Metadata: snapshot.ObjectMetadata{
			BackupID:   record.ID,
			BackupType: string(record.BackupType),
			SizeBytes:  int64(len(data)),
			Checksum:   checksum,
			CreatedAt:  snap.CreatedAt,
		},
		Data: data,
	}
	storeStarted := time.Now()
	err = r.storage.Store(ctx, object)
	r.logger.LogSnapshotIO("store", record.ID, r.cfg.Storage.Provider,
		int64(len(data)), time.Since(storeStarted), err)
	if err != nil {
		r.fail(ctx, record, started, err)
		return
	}

	duration := time.Since(started)
	err = r.catalog.Complete(ctx, record.ID, catalog.StatusSuccess, catalog.CompletionMetrics{
		SizeBytes:   int64(len(data)),
		Checksum:    checksum,
		RecordCount: snap.TotalRecords(),
		DurationMs:  duration.Milliseconds(),
	})
	if err != nil {
		r.logger.WithField("backup_id", record.ID).Errorf("Failed to complete backup record: %v", err)
		return
	}

	r.logger.LogBackupJob(record.ID, string(record.BackupType), record.Quick, int64(len(data)), duration, nil)

	if verifyAfter || r.cfg.Backup.VerifyAfterBackup {
		if _, err := r.verifier.Verify(ctx, record.ID); err != nil {
			r.logger.WithField("backup_id", record.ID).Warnf("Post-backup verification failed: %v", err)
		}
	}
}

// dump reads every in-scope model from the live store, in parallel,
// and assembles them into a snapshot in configured model order.
func (r *Runner) dump(ctx context.Context, record *catalog.BackupRecord) (*snapshot.Snapshot, error) {
	models := r.jobModels(record)

	sets := make([]snapshot.ModelSet, len(models))
	group, groupCtx := errgroup.WithContext(ctx)

	limit := r.cfg.Backup.Parallelism
	if limit <= 0 {
		limit = 4
	}
	group.SetLimit(limit)

	for i, model := range models {
		group.Go(func() error {
			records, err := r.store.DumpModel(groupCtx, model)
			if err != nil {
				return err
			}
			sets[i] = snapshot.ModelSet{
				Name:       model.Name,
				PrimaryKey: model.PrimaryKey,
				Records:    records,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return &snapshot.Snapshot{
		FormatVersion: snapshot.FormatVersion,
		BackupID:      record.ID,
		BackupType:    string(record.BackupType),
		CreatedAt:     r.now().UTC(),
		ModelSets:     sets,
	}, nil
}

func (r *Runner) jobModels(record *catalog.BackupRecord) []config.ModelConfig {
	models := r.cfg.ModelsForBackupType(string(record.BackupType))
	if !record.Quick {
		return models
	}

	kept := models[:0:0]
	for _, model := range models {
		if !model.QuickExcluded {
			kept = append(kept, model)
		}
	}
	return kept
}

func (r *Runner) fail(ctx context.Context, record *catalog.BackupRecord, started time.Time, cause error) {
	duration := time.Since(started)

	err := r.catalog.Complete(context.WithoutCancel(ctx), record.ID, catalog.StatusFailed, catalog.CompletionMetrics{
		DurationMs:   duration.Milliseconds(),
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		r.logger.WithField("backup_id", record.ID).Errorf("Failed to record backup failure: %v", err)
	}

	r.logger.LogBackupJob(record.ID, string(record.BackupType), record.Quick, 0, duration, cause)
}
