package verify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
)

var verifyTestTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type verifyEnv struct {
	verifier    *Verifier
	catalogMock sqlmock.Sqlmock
	checksum    string
}

func testConfig() *config.Config {
	return &config.Config{
		Models: []config.ModelConfig{
			{Name: "patients", Table: "patients", PrimaryKey: "id"},
			{Name: "appointments", Table: "appointments", PrimaryKey: "id"},
			{Name: "documents", Table: "documents", PrimaryKey: "id", Media: true},
			{Name: "logs", Table: "logs", PrimaryKey: "id", QuickExcluded: true},
		},
	}
}

func testSnapshot(models ...snapshot.ModelSet) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		FormatVersion: snapshot.FormatVersion,
		BackupID:      "backup-1",
		BackupType:    "DATABASE",
		CreatedAt:     verifyTestTime.Add(-time.Hour),
		ModelSets:     models,
	}
}

func databaseModelSets() []snapshot.ModelSet {
	return []snapshot.ModelSet{
		{Name: "patients", PrimaryKey: "id", Records: []snapshot.Record{
			{"id": float64(1), "name": "Jane"},
		}},
		{Name: "appointments", PrimaryKey: "id", Records: []snapshot.Record{
			{"id": float64(10), "patient_id": float64(1)},
		}},
		{Name: "logs", PrimaryKey: "id", Records: []snapshot.Record{
			{"id": float64(100), "message": "seeded"},
		}},
	}
}

func newVerifyEnv(t *testing.T, snap *snapshot.Snapshot) *verifyEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cat := catalog.NewCatalog(db, logging.NewDefaultLogger(), catalog.Options{})

	sealer, err := snapshot.NewSealer(config.CompressionConfig{}, config.EncryptionConfig{})
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}

	provider, err := snapshot.NewLocalStorageProvider(&config.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorageProvider() error = %v", err)
	}

	data, checksum, err := sealer.Seal(snap)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	err = provider.Store(context.Background(), &snapshot.Object{
		Metadata: snapshot.ObjectMetadata{
			BackupID:   snap.BackupID,
			BackupType: snap.BackupType,
			Checksum:   checksum,
			CreatedAt:  snap.CreatedAt,
		},
		Data: data,
	})
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	verifier := NewVerifier(cat, provider, sealer, testConfig(), logging.NewDefaultLogger())
	verifier.now = func() time.Time { return verifyTestTime }

	return &verifyEnv{verifier: verifier, catalogMock: mock, checksum: checksum}
}

func (e *verifyEnv) expectGet(status catalog.BackupStatus, quick bool, checksum string, recordCount int) {
	completed := verifyTestTime.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "backup_type", "quick", "status", "created_at", "updated_at", "completed_at",
		"size_bytes", "checksum", "record_count", "duration_ms", "verified_at", "error_message",
	}).AddRow("backup-1", "DATABASE", quick, string(status),
		completed.Add(-time.Minute), completed, completed,
		int64(2048), checksum, recordCount, int64(1500), nil, nil)

	e.catalogMock.ExpectQuery("SELECT (.+) FROM backup_records WHERE id").
		WillReturnRows(rows)
}

func TestVerify_ValidBackup(t *testing.T) {
	env := newVerifyEnv(t, testSnapshot(databaseModelSets()...))

	env.expectGet(catalog.StatusSuccess, false, env.checksum, 3)
	env.catalogMock.ExpectExec("UPDATE backup_records SET verified_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := env.verifier.Verify(context.Background(), "backup-1")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if !result.Valid {
		t.Errorf("expected valid result, got issues: %v", result.Issues)
	}
	if result.VerifiedAt.IsZero() {
		t.Error("expected verified timestamp to be set")
	}

	if err := env.catalogMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestVerify_ChecksumMismatch(t *testing.T) {
	env := newVerifyEnv(t, testSnapshot(databaseModelSets()...))

	env.expectGet(catalog.StatusSuccess, false, "deadbeef", 3)

	result, err := env.verifier.Verify(context.Background(), "backup-1")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if result.Valid {
		t.Fatal("expected checksum mismatch to invalidate the backup")
	}
	if !containsIssue(result.Issues, "checksum mismatch") {
		t.Errorf("expected checksum issue, got %v", result.Issues)
	}
	if !result.VerifiedAt.IsZero() {
		t.Error("invalid backup must not be marked verified")
	}
}

func TestVerify_MissingExpectedModel(t *testing.T) {
	sets := databaseModelSets()[:1] // patients only
	env := newVerifyEnv(t, testSnapshot(sets...))

	env.expectGet(catalog.StatusSuccess, false, env.checksum, 1)

	result, err := env.verifier.Verify(context.Background(), "backup-1")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if result.Valid {
		t.Fatal("expected missing model to invalidate the backup")
	}
	if !containsIssue(result.Issues, "expected model appointments is missing") {
		t.Errorf("expected missing model issue, got %v", result.Issues)
	}
}

func TestVerify_QuickBackupSkipsExcludedModels(t *testing.T) {
	sets := databaseModelSets()[:2] // patients and appointments, no logs
	env := newVerifyEnv(t, testSnapshot(sets...))

	env.expectGet(catalog.StatusSuccess, true, env.checksum, 2)
	env.catalogMock.ExpectExec("UPDATE backup_records SET verified_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := env.verifier.Verify(context.Background(), "backup-1")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if !result.Valid {
		t.Errorf("quick backup without excluded models must verify, got %v", result.Issues)
	}
}

func TestVerify_RecordCountMismatch(t *testing.T) {
	env := newVerifyEnv(t, testSnapshot(databaseModelSets()...))

	env.expectGet(catalog.StatusSuccess, false, env.checksum, 99)

	result, err := env.verifier.Verify(context.Background(), "backup-1")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if result.Valid {
		t.Fatal("expected record count mismatch to invalidate the backup")
	}
	if !containsIssue(result.Issues, "record count mismatch") {
		t.Errorf("expected record count issue, got %v", result.Issues)
	}
}

func TestVerify_BackupNotSuccessful(t *testing.T) {
	env := newVerifyEnv(t, testSnapshot(databaseModelSets()...))

	env.expectGet(catalog.StatusRunning, false, "", 0)

	_, err := env.verifier.Verify(context.Background(), "backup-1")
	if err == nil {
		t.Fatal("expected error verifying a running backup")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeBackupNotSuccessful) {
		t.Errorf("expected backup_not_successful type, got %v", apperrors.GetErrorType(err))
	}
}

func TestVerify_MissingSnapshot(t *testing.T) {
	env := newVerifyEnv(t, testSnapshot(databaseModelSets()...))

	completed := verifyTestTime.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "backup_type", "quick", "status", "created_at", "updated_at", "completed_at",
		"size_bytes", "checksum", "record_count", "duration_ms", "verified_at", "error_message",
	}).AddRow("backup-gone", "DATABASE", false, "SUCCESS",
		completed, completed, completed, int64(0), "", 0, int64(0), nil, nil)
	env.catalogMock.ExpectQuery("SELECT (.+) FROM backup_records WHERE id").
		WillReturnRows(rows)

	_, err := env.verifier.Verify(context.Background(), "backup-gone")
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("expected not_found type, got %v", apperrors.GetErrorType(err))
	}
}

func containsIssue(issues []string, substring string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, substring) {
			return true
		}
	}
	return false
}
