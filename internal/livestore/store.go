package livestore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
)

// Store reads and writes live application records. It knows nothing about
// backups or merge strategies; it only moves records between tables and
// the in-memory snapshot representation.
type Store struct {
	db         *sql.DB
	logger     *logging.Logger
	classifier *apperrors.ErrorClassifier
}

// NewStore creates a store over the live database handle
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Store{
		db:         db,
		logger:     logger,
		classifier: apperrors.NewErrorClassifier(),
	}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// Conn checks out a dedicated connection. Advisory locks are per-session,
// so lock acquisition and release must happen on the same connection.
func (s *Store) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, s.classifier.ClassifyError(err)
	}
	return conn, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// DumpModel reads every record of a model ordered by primary key, so
// repeated dumps of unchanged data produce identical snapshots.
func (s *Store) DumpModel(ctx context.Context, model config.ModelConfig) ([]snapshot.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s",
		quoteIdentifier(model.Table), quoteIdentifier(model.PrimaryKey))

	records, err := s.queryRecords(ctx, s.db, query)
	if err != nil {
		return nil, apperrors.WrapError(s.classifier.ClassifyError(err),
			fmt.Sprintf("failed to dump model %s", model.Name))
	}
	return records, nil
}

// LoadRecords reads a model's live records indexed by primary key
func (s *Store) LoadRecords(ctx context.Context, model config.ModelConfig) (map[string]snapshot.Record, error) {
	return s.loadRecords(ctx, s.db, model)
}

// LoadRecordsTx is LoadRecords inside an open transaction, so restore
// planning and execution see one consistent view of the table.
func (s *Store) LoadRecordsTx(ctx context.Context, tx *sql.Tx, model config.ModelConfig) (map[string]snapshot.Record, error) {
	return s.loadRecords(ctx, tx, model)
}

func (s *Store) loadRecords(ctx context.Context, q queryer, model config.ModelConfig) (map[string]snapshot.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s", quoteIdentifier(model.Table))

	records, err := s.queryRecords(ctx, q, query)
	if err != nil {
		return nil, apperrors.WrapError(s.classifier.ClassifyError(err),
			fmt.Sprintf("failed to load live records for model %s", model.Name))
	}

	indexed := make(map[string]snapshot.Record, len(records))
	for _, record := range records {
		key := KeyString(record[model.PrimaryKey])
		if key == "" {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("live record in model %s has no %s value", model.Name, model.PrimaryKey), nil)
		}
		indexed[key] = record
	}

	return indexed, nil
}

func (s *Store) queryRecords(ctx context.Context, q queryer, query string) ([]snapshot.Record, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []snapshot.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		record := make(snapshot.Record, len(columns))
		for i, column := range columns {
			record[column] = NormalizeValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// BeginRestoreTx opens the transaction restore runs in. Repeatable read
// keeps the in-transaction re-plan consistent with the writes that follow.
func (s *Store) BeginRestoreTx(ctx context.Context, conn *sql.Conn) (*sql.Tx, error) {
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, s.classifier.ClassifyError(err)
	}
	return tx, nil
}

// InsertRecord inserts a full snapshot record into a model's table
func (s *Store) InsertRecord(ctx context.Context, tx *sql.Tx, model config.ModelConfig, record snapshot.Record) error {
	columns := sortedColumns(record)
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	quoted := make([]string, len(columns))

	for i, column := range columns {
		quoted[i] = quoteIdentifier(column)
		placeholders[i] = "?"
		args[i] = record[column]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(model.Table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.WrapError(s.classifier.ClassifyError(err),
			fmt.Sprintf("failed to insert record into model %s", model.Name))
	}
	return nil
}

// UpdateRecord overwrites the given fields of one live record. Callers
// decide which fields change; the store applies them verbatim.
func (s *Store) UpdateRecord(ctx context.Context, tx *sql.Tx, model config.ModelConfig, primaryKey interface{}, fields snapshot.Record) error {
	if len(fields) == 0 {
		return nil
	}

	columns := sortedColumns(fields)
	assignments := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+1)

	for i, column := range columns {
		assignments[i] = quoteIdentifier(column) + " = ?"
		args = append(args, fields[column])
	}
	args = append(args, primaryKey)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdentifier(model.Table),
		strings.Join(assignments, ", "),
		quoteIdentifier(model.PrimaryKey))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.WrapError(s.classifier.ClassifyError(err),
			fmt.Sprintf("failed to update record in model %s", model.Name))
	}
	return nil
}

// AcquireLock takes a named MySQL advisory lock without waiting.
// Returns false when another session already holds it.
func (s *Store) AcquireLock(ctx context.Context, conn *sql.Conn, name string) (bool, error) {
	var acquired sql.NullInt64
	err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&acquired)
	if err != nil {
		return false, s.classifier.ClassifyError(err)
	}
	return acquired.Valid && acquired.Int64 == 1, nil
}

// ReleaseLock releases a named advisory lock held by this session
func (s *Store) ReleaseLock(ctx context.Context, conn *sql.Conn, name string) error {
	var released sql.NullInt64
	err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", name).Scan(&released)
	if err != nil {
		return s.classifier.ClassifyError(err)
	}
	return nil
}

// HealthCheck pings the live database
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.classifier.ClassifyError(err)
	}
	return nil
}

// NormalizeValue converts driver values into the forms the snapshot
// codec produces, so live and decoded records compare cleanly. MySQL
// returns text columns as []byte; JSON decoding yields string and
// float64, never []byte or int64. Widening integers to float64 is exact
// only up to 2^53; BIGINT keys beyond that must be stored as strings.
func NormalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// KeyString renders a primary key value as a stable map key
func KeyString(value interface{}) string {
	switch v := NormalizeValue(value).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedColumns(record snapshot.Record) []string {
	columns := make([]string, 0, len(record))
	for column := range record {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
