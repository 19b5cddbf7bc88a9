package worker

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	"snapshot-restore/internal/livestore"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
	"snapshot-restore/internal/verify"
)

type runnerEnv struct {
	runner      *Runner
	catalogMock sqlmock.Sqlmock
	storeMock   sqlmock.Sqlmock
	storage     snapshot.StorageProvider
}

func workerConfig() *config.Config {
	return &config.Config{
		Models: []config.ModelConfig{
			{Name: "patients", Table: "patients", PrimaryKey: "id"},
			{Name: "documents", Table: "documents", PrimaryKey: "id", Media: true},
			{Name: "logs", Table: "logs", PrimaryKey: "id", QuickExcluded: true},
		},
		Backup: config.BackupConfig{Parallelism: 1},
	}
}

func newRunnerEnv(t *testing.T) *runnerEnv {
	t.Helper()

	catalogDB, catalogMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create catalog sqlmock: %v", err)
	}
	t.Cleanup(func() { catalogDB.Close() })

	liveDB, storeMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create live sqlmock: %v", err)
	}
	t.Cleanup(func() { liveDB.Close() })
	storeMock.MatchExpectationsInOrder(false)

	logger := logging.NewDefaultLogger()
	cfg := workerConfig()
	cat := catalog.NewCatalog(catalogDB, logger, catalog.Options{})
	store := livestore.NewStore(liveDB, logger)

	sealer, err := snapshot.NewSealer(config.CompressionConfig{}, config.EncryptionConfig{})
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	provider, err := snapshot.NewLocalStorageProvider(&config.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorageProvider() error = %v", err)
	}

	verifier := verify.NewVerifier(cat, provider, sealer, cfg, logger)
	runner := NewRunner(cat, store, provider, sealer, verifier, cfg, logger)

	return &runnerEnv{
		runner:      runner,
		catalogMock: catalogMock,
		storeMock:   storeMock,
		storage:     provider,
	}
}

func (e *runnerEnv) expectFinalGet(status catalog.BackupStatus) {
	completed := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "backup_type", "quick", "status", "created_at", "updated_at", "completed_at",
		"size_bytes", "checksum", "record_count", "duration_ms", "verified_at", "error_message",
	}).AddRow("backup-1", "FULL", false, string(status),
		completed.Add(-time.Minute), completed, completed,
		int64(2048), "abc123", 3, int64(1500), nil, nil)

	e.catalogMock.ExpectQuery("SELECT (.+) FROM backup_records WHERE id").
		WillReturnRows(rows)
}

func expectModelDump(mock sqlmock.Sqlmock, table string, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `" + table + "` ORDER BY `id`")).
		WillReturnRows(rows)
}

func TestRunner_Run_FullBackup(t *testing.T) {
	env := newRunnerEnv(t)
	ctx := context.Background()

	env.catalogMock.ExpectExec("INSERT INTO backup_records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectFinalGet(catalog.StatusSuccess)

	expectModelDump(env.storeMock, "patients",
		sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), []byte("Jane")))
	expectModelDump(env.storeMock, "documents",
		sqlmock.NewRows([]string{"id", "path"}).AddRow(int64(10), []byte("/files/a.pdf")))
	expectModelDump(env.storeMock, "logs",
		sqlmock.NewRows([]string{"id", "message"}).AddRow(int64(100), []byte("seeded")))

	record, err := env.runner.Run(ctx, catalog.BackupTypeFull, false, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if record.Status != catalog.StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", record.Status)
	}

	if err := env.storeMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet live store expectations: %v", err)
	}
	if err := env.catalogMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet catalog expectations: %v", err)
	}
}

func TestRunner_Run_QuickSkipsExcludedModels(t *testing.T) {
	env := newRunnerEnv(t)
	ctx := context.Background()

	env.catalogMock.ExpectExec("INSERT INTO backup_records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectFinalGet(catalog.StatusSuccess)

	// Only the non-excluded database model is dumped; querying logs
	// would fail the unordered expectation set.
	expectModelDump(env.storeMock, "patients",
		sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), []byte("Jane")))

	if _, err := env.runner.Run(ctx, catalog.BackupTypeDatabase, true, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if err := env.storeMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet live store expectations: %v", err)
	}
}

func TestRunner_Run_DumpFailureMarksFailed(t *testing.T) {
	env := newRunnerEnv(t)
	ctx := context.Background()

	env.catalogMock.ExpectExec("INSERT INTO backup_records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectFinalGet(catalog.StatusFailed)

	env.storeMock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `documents` ORDER BY `id`")).
		WillReturnError(errors.New("table is locked"))

	record, err := env.runner.Run(ctx, catalog.BackupTypeMedia, false, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if record.Status != catalog.StatusFailed {
		t.Errorf("expected FAILED, got %s", record.Status)
	}
}

func TestRunner_Run_StoresSnapshot(t *testing.T) {
	env := newRunnerEnv(t)
	ctx := context.Background()

	env.catalogMock.ExpectExec("INSERT INTO backup_records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectFinalGet(catalog.StatusSuccess)

	expectModelDump(env.storeMock, "documents",
		sqlmock.NewRows([]string{"id", "path"}).AddRow(int64(10), []byte("/files/a.pdf")))

	record, err := env.runner.Run(ctx, catalog.BackupTypeMedia, false, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	metadata, err := env.storage.GetMetadata(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if metadata.BackupType != "MEDIA" {
		t.Errorf("expected MEDIA snapshot, got %s", metadata.BackupType)
	}
	if metadata.Checksum == "" {
		t.Error("expected stored snapshot to carry a checksum")
	}
	if metadata.SizeBytes == 0 {
		t.Error("expected stored snapshot to have a size")
	}
}

func TestRunner_Enqueue_ReturnsImmediately(t *testing.T) {
	env := newRunnerEnv(t)
	ctx := context.Background()

	env.catalogMock.ExpectExec("INSERT INTO backup_records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.catalogMock.ExpectExec("UPDATE backup_records").
		WillReturnResult(sqlmock.NewResult(0, 1))

	expectModelDump(env.storeMock, "documents",
		sqlmock.NewRows([]string{"id", "path"}).AddRow(int64(10), []byte("/files/a.pdf")))

	record, err := env.runner.Enqueue(ctx, catalog.BackupTypeMedia, false, false)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if record.Status != catalog.StatusPending {
		t.Errorf("expected PENDING at enqueue time, got %s", record.Status)
	}

	env.runner.Wait()

	if _, err := env.storage.GetMetadata(ctx, record.ID); err != nil {
		t.Errorf("expected snapshot to be stored after Wait(): %v", err)
	}
}

func TestWatchdog_Sweep(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	logger := logging.NewDefaultLogger()
	cat := catalog.NewCatalog(db, logger, catalog.Options{})
	watchdog := NewWatchdog(cat, workerConfig(), logger)
	watchdog.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	mock.ExpectExec("UPDATE backup_records").
		WillReturnResult(sqlmock.NewResult(0, 2))

	watchdog.Sweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
