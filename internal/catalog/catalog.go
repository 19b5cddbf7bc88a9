package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/logging"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS backup_records (
	id            VARCHAR(64)  NOT NULL PRIMARY KEY,
	backup_type   VARCHAR(16)  NOT NULL,
	quick         TINYINT(1)   NOT NULL DEFAULT 0,
	status        VARCHAR(16)  NOT NULL,
	created_at    DATETIME(6)  NOT NULL,
	updated_at    DATETIME(6)  NOT NULL,
	completed_at  DATETIME(6)  NULL,
	size_bytes    BIGINT       NOT NULL DEFAULT 0,
	checksum      VARCHAR(64)  NOT NULL DEFAULT '',
	record_count  INT          NOT NULL DEFAULT 0,
	duration_ms   BIGINT       NOT NULL DEFAULT 0,
	verified_at   DATETIME(6)  NULL,
	error_message TEXT         NULL,
	INDEX idx_backup_records_status (status),
	INDEX idx_backup_records_created (created_at)
)`

const recordColumns = `id, backup_type, quick, status, created_at, updated_at, completed_at,
	size_bytes, checksum, record_count, duration_ms, verified_at, error_message`

// Catalog is the MySQL-backed ledger of backup records. Status transitions
// are monotonic: PENDING -> RUNNING -> SUCCESS or FAILED, and a terminal
// record never changes state again.
type Catalog struct {
	db              *sql.DB
	logger          *logging.Logger
	classifier      *apperrors.ErrorClassifier
	freshnessWindow time.Duration
	summaryWindow   int
	now             func() time.Time
}

// Options configures catalog behavior
type Options struct {
	FreshnessWindow time.Duration
	SummaryWindow   int
}

// NewCatalog creates a catalog over the given database handle
func NewCatalog(db *sql.DB, logger *logging.Logger, opts Options) *Catalog {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = 24 * time.Hour
	}
	if opts.SummaryWindow <= 0 {
		opts.SummaryWindow = 50
	}

	return &Catalog{
		db:              db,
		logger:          logger,
		classifier:      apperrors.NewErrorClassifier(),
		freshnessWindow: opts.FreshnessWindow,
		summaryWindow:   opts.SummaryWindow,
		now:             time.Now,
	}
}

// EnsureSchema creates the backup_records table if it does not exist
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, createTableStatement); err != nil {
		return c.classifier.ClassifyError(err)
	}
	return nil
}

// BeginBackup inserts a new PENDING record and returns it
func (c *Catalog) BeginBackup(ctx context.Context, backupType BackupType, quick bool) (*BackupRecord, error) {
	if !backupType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid backup type: %s", backupType), nil)
	}

	now := c.now().UTC()
	record := &BackupRecord{
		ID:         NewBackupID(now),
		BackupType: backupType,
		Quick:      quick,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO backup_records (id, backup_type, quick, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.BackupType), record.Quick, string(record.Status),
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return nil, c.classifier.ClassifyError(err)
	}

	c.logger.WithFields(map[string]interface{}{
		"backup_id":   record.ID,
		"backup_type": record.BackupType,
		"quick":       record.Quick,
	}).Info("Backup record created")

	return record, nil
}

// MarkRunning transitions a PENDING record to RUNNING
func (c *Catalog) MarkRunning(ctx context.Context, backupID string) error {
	now := c.now().UTC()
	result, err := c.db.ExecContext(ctx,
		`UPDATE backup_records SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(StatusRunning), now, backupID, string(StatusPending))
	if err != nil {
		return c.classifier.ClassifyError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return c.classifier.ClassifyError(err)
	}
	if affected == 0 {
		return c.explainRejectedTransition(ctx, backupID, StatusRunning)
	}

	return nil
}

// Complete transitions a record to a terminal state and records metrics.
// Completing an already-terminal record with the same status is a no-op,
// so retried completions are safe.
func (c *Catalog) Complete(ctx context.Context, backupID string, status BackupStatus, metrics CompletionMetrics) error {
	if !status.IsTerminal() {
		return apperrors.NewValidationError(fmt.Sprintf("completion status must be terminal, got %s", status), nil)
	}

	now := c.now().UTC()
	result, err := c.db.ExecContext(ctx,
		`UPDATE backup_records
		 SET status = ?, updated_at = ?, completed_at = ?, size_bytes = ?, checksum = ?,
		     record_count = ?, duration_ms = ?, error_message = ?
		 WHERE id = ? AND status IN (?, ?)`,
		string(status), now, now, metrics.SizeBytes, metrics.Checksum,
		metrics.RecordCount, metrics.DurationMs, metrics.ErrorMessage,
		backupID, string(StatusPending), string(StatusRunning))
	if err != nil {
		return c.classifier.ClassifyError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return c.classifier.ClassifyError(err)
	}
	if affected == 0 {
		return c.explainRejectedTransition(ctx, backupID, status)
	}

	return nil
}

// MarkVerified records a successful integrity verification. Only SUCCESS
// records can be verified.
func (c *Catalog) MarkVerified(ctx context.Context, backupID string, verifiedAt time.Time) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE backup_records SET verified_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		verifiedAt.UTC(), c.now().UTC(), backupID, string(StatusSuccess))
	if err != nil {
		return c.classifier.ClassifyError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return c.classifier.ClassifyError(err)
	}
	if affected == 0 {
		record, err := c.Get(ctx, backupID)
		if err != nil {
			return err
		}
		return apperrors.NewBackupNotSuccessfulError(backupID, string(record.Status))
	}

	return nil
}

// Get returns a single backup record with freshness derived
func (c *Catalog) Get(ctx context.Context, backupID string) (*BackupRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM backup_records WHERE id = ?`, backupID)

	record, err := c.scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("backup %s not found", backupID), nil)
	}
	if err != nil {
		return nil, c.classifier.ClassifyError(err)
	}

	return record, nil
}

// List returns backup records matching the filter, newest first
func (c *Catalog) List(ctx context.Context, filter ListFilter) ([]*BackupRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM backup_records`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.BackupType != "" {
		conditions = append(conditions, "backup_type = ?")
		args = append(args, string(filter.BackupType))
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.classifier.ClassifyError(err)
	}
	defer rows.Close()

	var records []*BackupRecord
	for rows.Next() {
		record, err := c.scanRecord(rows)
		if err != nil {
			return nil, c.classifier.ClassifyError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, c.classifier.ClassifyError(err)
	}

	return records, nil
}

// LatestSuccessful returns the most recent SUCCESS record, or a not_found
// error when no backup has ever succeeded.
func (c *Catalog) LatestSuccessful(ctx context.Context) (*BackupRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM backup_records WHERE status = ?
		 ORDER BY created_at DESC LIMIT 1`, string(StatusSuccess))

	record, err := c.scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("no successful backup found", nil)
	}
	if err != nil {
		return nil, c.classifier.ClassifyError(err)
	}

	return record, nil
}

// Summarize aggregates the most recent records into a health summary
func (c *Catalog) Summarize(ctx context.Context) (*Summary, error) {
	records, err := c.List(ctx, ListFilter{Limit: c.summaryWindow})
	if err != nil {
		return nil, err
	}

	summary := &Summary{WindowSize: c.summaryWindow}

	var totalDuration, totalSize int64

	// records arrive newest first, so the first SUCCESS seen is the latest
	for _, record := range records {
		summary.TotalBackups++

		switch record.Status {
		case StatusSuccess:
			summary.SuccessCount++
			totalDuration += record.DurationMs
			totalSize += record.SizeBytes
			if summary.SuccessCount == 1 {
				summary.LastSuccessVerified = record.VerifiedAt != nil
			}
			if summary.LastSuccessAt == nil && record.CompletedAt != nil {
				t := *record.CompletedAt
				summary.LastSuccessAt = &t
			}
			if summary.LastFullSuccessAt == nil && record.BackupType == BackupTypeFull && record.CompletedAt != nil {
				t := *record.CompletedAt
				summary.LastFullSuccessAt = &t
			}
			if record.IsRecent {
				summary.HasRecentBackup = true
			}
		case StatusFailed:
			summary.FailureCount++
			if summary.LastFailureAt == nil && record.CompletedAt != nil {
				t := *record.CompletedAt
				summary.LastFailureAt = &t
			}
		}
	}

	// success rate is over every record in the window, in-flight included
	if summary.TotalBackups > 0 {
		summary.SuccessRate = float64(summary.SuccessCount) / float64(summary.TotalBackups)
	}
	if summary.SuccessCount > 0 {
		summary.AverageDurationMs = totalDuration / int64(summary.SuccessCount)
		summary.AverageSizeBytes = totalSize / int64(summary.SuccessCount)
	}

	return summary, nil
}

// fullBackupMaxAge is how long a FULL backup stays fresh enough that the
// catalog does not recommend scheduling a new one.
const fullBackupMaxAge = 30 * 24 * time.Hour

// Recommendations derives prioritized operational advice from a summary.
// Pure with respect to catalog state; no queries, no side effects.
func (c *Catalog) Recommendations(summary *Summary) []Recommendation {
	if summary.TotalBackups == 0 {
		return []Recommendation{{
			Priority: PriorityHigh,
			Action:   "create_backup",
			Message:  "No backups recorded yet. Run an initial FULL backup.",
		}}
	}

	var recs []Recommendation

	if !summary.HasRecentBackup {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Action:   "create_backup",
			Message: fmt.Sprintf(
				"No successful backup within the last %s. Schedule a new backup.", c.freshnessWindow),
		})
	}

	if summary.SuccessCount+summary.FailureCount > 0 && summary.SuccessRate < 0.9 {
		priority := PriorityMedium
		if summary.SuccessRate < 0.5 {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{
			Priority: priority,
			Action:   "investigate_failures",
			Message: fmt.Sprintf(
				"Backup success rate is %.0f%%. Investigate recent failures.", summary.SuccessRate*100),
		})
	}

	if summary.LastFailureAt != nil && (summary.LastSuccessAt == nil || summary.LastFailureAt.After(*summary.LastSuccessAt)) {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Action:   "retry_backup",
			Message:  "The most recent completed backup failed. Check the error message and retry.",
		})
	}

	if summary.SuccessCount > 0 && !summary.LastSuccessVerified {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Action:   "verify_backup",
			Message:  "The latest successful backup has not been verified. Run a verification.",
		})
	}

	if summary.LastFullSuccessAt == nil || c.now().UTC().Sub(*summary.LastFullSuccessAt) > fullBackupMaxAge {
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Action:   "schedule_full_backup",
			Message: fmt.Sprintf(
				"No FULL backup completed within the last %d days. Schedule one.", int(fullBackupMaxAge.Hours()/24)),
		})
	}

	return recs
}

// FailStale marks PENDING and RUNNING records untouched since the cutoff
// as FAILED. Used by the watchdog to recover from crashed jobs.
func (c *Catalog) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	now := c.now().UTC()
	result, err := c.db.ExecContext(ctx,
		`UPDATE backup_records
		 SET status = ?, updated_at = ?, completed_at = ?, error_message = ?
		 WHERE status IN (?, ?) AND updated_at < ?`,
		string(StatusFailed), now, now, message,
		string(StatusPending), string(StatusRunning), cutoff.UTC())
	if err != nil {
		return 0, c.classifier.ClassifyError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, c.classifier.ClassifyError(err)
	}

	if affected > 0 {
		c.logger.WithField("count", affected).Warn("Marked stale backup jobs as failed")
	}

	return affected, nil
}

// explainRejectedTransition turns a zero-row update into a precise error
func (c *Catalog) explainRejectedTransition(ctx context.Context, backupID string, requested BackupStatus) error {
	record, err := c.Get(ctx, backupID)
	if err != nil {
		return err
	}

	// Retried completion with the same terminal status is harmless
	if record.Status == requested && requested.IsTerminal() {
		return nil
	}

	return apperrors.NewValidationError(
		fmt.Sprintf("backup %s cannot transition from %s to %s", backupID, record.Status, requested), nil)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (c *Catalog) scanRecord(row rowScanner) (*BackupRecord, error) {
	var record BackupRecord
	var backupType, status string
	var completedAt, verifiedAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(
		&record.ID, &backupType, &record.Quick, &status,
		&record.CreatedAt, &record.UpdatedAt, &completedAt,
		&record.SizeBytes, &record.Checksum, &record.RecordCount,
		&record.DurationMs, &verifiedAt, &errorMessage)
	if err != nil {
		return nil, err
	}

	record.BackupType = BackupType(backupType)
	record.Status = BackupStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		record.VerifiedAt = &t
	}
	if errorMessage.Valid {
		record.ErrorMessage = errorMessage.String
	}

	record.IsRecent = record.Status == StatusSuccess &&
		record.CompletedAt != nil &&
		c.now().UTC().Sub(record.CompletedAt.UTC()) <= c.freshnessWindow

	return &record, nil
}
