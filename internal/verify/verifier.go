package verify

import (
	"context"
	"fmt"
	"time"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
)

// VerificationResult reports the outcome of one integrity check
type VerificationResult struct {
	BackupID   string    `json:"backup_id"`
	Valid      bool      `json:"valid"`
	Issues     []string  `json:"issues,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Verifier re-reads a completed backup and confirms it is intact: the
// stored checksum matches recomputed content, every expected model is
// present, and the record count agrees with the catalog. Verification
// never mutates the snapshot and never changes the backup's status, only
// its verified timestamp.
type Verifier struct {
	catalog *catalog.Catalog
	storage snapshot.StorageProvider
	sealer  *snapshot.Sealer
	cfg     *config.Config
	logger  *logging.Logger
	now     func() time.Time
}

// NewVerifier creates a backup verifier
func NewVerifier(cat *catalog.Catalog, storage snapshot.StorageProvider, sealer *snapshot.Sealer,
	cfg *config.Config, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Verifier{
		catalog: cat,
		storage: storage,
		sealer:  sealer,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Verify checks one SUCCESS backup end to end. Integrity problems are
// reported as issues in the result, not as errors; only a missing backup
// or a non-successful status fails the call itself. Verify is idempotent
// and can be invoked any number of times after the backup completes.
func (v *Verifier) Verify(ctx context.Context, backupID string) (*VerificationResult, error) {
	started := time.Now()

	record, err := v.catalog.Get(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if record.Status != catalog.StatusSuccess {
		return nil, apperrors.NewBackupNotSuccessfulError(backupID, string(record.Status))
	}

	object, err := v.storage.Retrieve(ctx, backupID)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{BackupID: backupID}
	result.Issues = v.inspect(record, object.Data)
	result.Valid = len(result.Issues) == 0

	if result.Valid {
		verifiedAt := v.now().UTC()
		if err := v.catalog.MarkVerified(ctx, backupID, verifiedAt); err != nil {
			return nil, err
		}
		result.VerifiedAt = verifiedAt
	}

	v.logger.LogVerification(backupID, result.Valid, result.Issues, time.Since(started))

	return result, nil
}

func (v *Verifier) inspect(record *catalog.BackupRecord, data []byte) []string {
	var issues []string

	checksum, err := v.sealer.VerifyChecksum(data)
	if err != nil {
		issues = append(issues, fmt.Sprintf("snapshot cannot be read: %v", err))
		return issues
	}
	if record.Checksum != "" && checksum != record.Checksum {
		issues = append(issues, fmt.Sprintf(
			"checksum mismatch: catalog has %s, snapshot content hashes to %s",
			record.Checksum, checksum))
	}

	snap, err := v.sealer.Open(data)
	if err != nil {
		issues = append(issues, fmt.Sprintf("snapshot failed to decode: %v", err))
		return issues
	}

	if snap.BackupID != record.ID {
		issues = append(issues, fmt.Sprintf(
			"snapshot identifies as %s, expected %s", snap.BackupID, record.ID))
	}

	issues = append(issues, v.missingModels(record, snap)...)

	if count := snap.TotalRecords(); record.RecordCount > 0 && count != record.RecordCount {
		issues = append(issues, fmt.Sprintf(
			"record count mismatch: catalog has %d, snapshot contains %d",
			record.RecordCount, count))
	}

	for _, set := range snap.ModelSets {
		for i, rec := range set.Records {
			if rec[set.PrimaryKey] == nil {
				issues = append(issues, fmt.Sprintf(
					"record %d in model %s has a null %s", i, set.Name, set.PrimaryKey))
			}
		}
	}

	return issues
}

// missingModels checks that every model the backup's type and quick flag
// promised is actually present in the snapshot.
func (v *Verifier) missingModels(record *catalog.BackupRecord, snap *snapshot.Snapshot) []string {
	if v.cfg == nil {
		return nil
	}

	var issues []string
	for _, model := range v.cfg.ModelsForBackupType(string(record.BackupType)) {
		if record.Quick && model.QuickExcluded {
			continue
		}
		if snap.FindModelSet(model.Name) == nil {
			issues = append(issues, fmt.Sprintf("expected model %s is missing", model.Name))
		}
	}
	return issues
}
