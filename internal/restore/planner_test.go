package restore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/livestore"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
)

var planTestTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockCatalog(t *testing.T) (*catalog.Catalog, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return catalog.NewCatalog(db, logging.NewDefaultLogger(), catalog.Options{}), mock
}

func newMockStore(t *testing.T) (*livestore.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return livestore.NewStore(db, logging.NewDefaultLogger()), mock
}

func catalogRow(status catalog.BackupStatus) *sqlmock.Rows {
	completed := planTestTime.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "backup_type", "quick", "status", "created_at", "updated_at", "completed_at",
		"size_bytes", "checksum", "record_count", "duration_ms", "verified_at", "error_message",
	})

	var completedAt interface{}
	if status.IsTerminal() {
		completedAt = completed
	}
	rows.AddRow("backup-1", "DATABASE", false, string(status),
		completed.Add(-time.Minute), completed, completedAt,
		int64(2048), "abc123", 1, int64(1500), nil, nil)
	return rows
}

func expectCatalogGet(mock sqlmock.Sqlmock, status catalog.BackupStatus) {
	mock.ExpectQuery("SELECT (.+) FROM backup_records WHERE id").
		WillReturnRows(catalogRow(status))
}

func seedSnapshot(t *testing.T, snap *snapshot.Snapshot) (snapshot.StorageProvider, *snapshot.Sealer) {
	t.Helper()

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

	return provider, sealer
}

func expectLivePatients(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `patients`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone"}).
			AddRow(int64(1), []byte("Jane Doe"), []byte("555-1000")).
			AddRow(int64(2), []byte("Bob"), nil))
}

func TestPlanner_Plan(t *testing.T) {
	cat, catalogMock := newMockCatalog(t)
	store, storeMock := newMockStore(t)

	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane", "phone": nil})
	provider, sealer := seedSnapshot(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusSuccess)
	expectLivePatients(storeMock)

	planner := NewPlanner(cat, store, provider, sealer, testConfig(), logging.NewDefaultLogger())

	plan, err := planner.Plan(context.Background(), "backup-1", StrategyMerge)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if plan.BackupID != "backup-1" {
		t.Errorf("expected backup-1, got %s", plan.BackupID)
	}
	if plan.Summary.Conflicts != 1 {
		t.Errorf("expected 1 conflict, got %d", plan.Summary.Conflicts)
	}
	if !plan.SafeToRestore {
		t.Error("MERGE plan must be safe")
	}
}

func TestPlanner_Plan_BackupNotSuccessful(t *testing.T) {
	cat, catalogMock := newMockCatalog(t)
	store, _ := newMockStore(t)

	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane", "phone": nil})
	provider, sealer := seedSnapshot(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusRunning)

	planner := NewPlanner(cat, store, provider, sealer, testConfig(), logging.NewDefaultLogger())

	_, err := planner.Plan(context.Background(), "backup-1", StrategyMerge)
	if err == nil {
		t.Fatal("expected error for non-successful backup")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeBackupNotSuccessful) {
		t.Errorf("expected backup_not_successful type, got %v", apperrors.GetErrorType(err))
	}
}

func TestPlanner_Plan_SnapshotMissing(t *testing.T) {
	cat, catalogMock := newMockCatalog(t)
	store, _ := newMockStore(t)

	provider, err := snapshot.NewLocalStorageProvider(&config.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorageProvider() error = %v", err)
	}
	sealer, err := snapshot.NewSealer(config.CompressionConfig{}, config.EncryptionConfig{})
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}

	expectCatalogGet(catalogMock, catalog.StatusSuccess)

	planner := NewPlanner(cat, store, provider, sealer, testConfig(), logging.NewDefaultLogger())

	_, err = planner.Plan(context.Background(), "backup-1", StrategyReplace)
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("expected not_found type, got %v", apperrors.GetErrorType(err))
	}
}

func TestPlanner_Plan_InvalidStrategy(t *testing.T) {
	cat, _ := newMockCatalog(t)
	store, _ := newMockStore(t)

	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane", "phone": nil})
	provider, sealer := seedSnapshot(t, snap)

	planner := NewPlanner(cat, store, provider, sealer, testConfig(), logging.NewDefaultLogger())

	_, err := planner.Plan(context.Background(), "backup-1", MergeStrategy("UPSERT"))
	if err == nil {
		t.Fatal("expected error for invalid strategy")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("expected validation type, got %v", apperrors.GetErrorType(err))
	}
}
