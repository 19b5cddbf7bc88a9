package restore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"snapshot-restore/internal/catalog"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/snapshot"
)

func newExecutor(t *testing.T, snap *snapshot.Snapshot) (*Executor, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()

	cat, catalogMock := newMockCatalog(t)
	store, storeMock := newMockStore(t)
	provider, sealer := seedSnapshot(t, snap)

	executor := NewExecutor(cat, store, provider, sealer, testConfig(), logging.NewDefaultLogger())
	return executor, catalogMock, storeMock
}

func expectLock(mock sqlmock.Sqlmock, acquired int64) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, 0)")).
		WithArgs("snapshot_restore:backup-1").
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(acquired))
}

func expectUnlock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT RELEASE_LOCK(?)")).
		WithArgs("snapshot_restore:backup-1").
		WillReturnRows(sqlmock.NewRows([]string{"RELEASE_LOCK"}).AddRow(int64(1)))
}

func TestExecutor_MergeLeavesPopulatedFieldsAlone(t *testing.T) {
	// Snapshot has Jane before her rename; live Jane Doe keeps her name
	// and phone, so the conflict produces no writes at all.
	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane", "phone": nil})
	executor, catalogMock, storeMock := newExecutor(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusSuccess)
	expectLock(storeMock, 1)
	storeMock.ExpectBegin()
	expectLivePatients(storeMock)
	storeMock.ExpectCommit()
	expectUnlock(storeMock)

	result, err := executor.Execute(context.Background(), "backup-1", StrategyMerge, false)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.RecordsCreated != 0 || result.RecordsUpdated != 0 {
		t.Errorf("expected no writes, got created=%d updated=%d",
			result.RecordsCreated, result.RecordsUpdated)
	}
	if result.RecordsSkipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", result.RecordsSkipped)
	}

	if err := storeMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecutor_ReplaceWithoutForceIsRejected(t *testing.T) {
	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane", "phone": nil})
	executor, catalogMock, storeMock := newExecutor(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusSuccess)
	expectLock(storeMock, 1)
	storeMock.ExpectBegin()
	expectLivePatients(storeMock)
	storeMock.ExpectRollback()
	expectUnlock(storeMock)

	_, err := executor.Execute(context.Background(), "backup-1", StrategyReplace, false)
	if err == nil {
		t.Fatal("expected unsafe restore to be rejected")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeUnsafeRestore) {
		t.Errorf("expected unsafe_restore type, got %v", apperrors.GetErrorType(err))
	}

	if err := storeMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecutor_ReplaceWithForceOverwrites(t *testing.T) {
	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane", "phone": "555-1000"})
	executor, catalogMock, storeMock := newExecutor(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusSuccess)
	expectLock(storeMock, 1)
	storeMock.ExpectBegin()
	expectLivePatients(storeMock)
	storeMock.ExpectExec(regexp.QuoteMeta("UPDATE `patients` SET `name` = ? WHERE `id` = ?")).
		WithArgs("Jane", float64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	storeMock.ExpectCommit()
	expectUnlock(storeMock)

	result, err := executor.Execute(context.Background(), "backup-1", StrategyReplace, true)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.RecordsUpdated != 1 {
		t.Errorf("expected 1 updated record, got %d", result.RecordsUpdated)
	}

	if err := storeMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecutor_SkipCreatesOnlyMissingRecords(t *testing.T) {
	snap := patientsSnapshot(
		snapshot.Record{"id": float64(1), "name": "Jane", "phone": nil},
		snapshot.Record{"id": float64(3), "name": "Carol", "phone": nil},
	)
	executor, catalogMock, storeMock := newExecutor(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusSuccess)
	expectLock(storeMock, 1)
	storeMock.ExpectBegin()
	expectLivePatients(storeMock)
	storeMock.ExpectExec(regexp.QuoteMeta("INSERT INTO `patients` (`id`, `name`, `phone`) VALUES (?, ?, ?)")).
		WithArgs(float64(3), "Carol", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	storeMock.ExpectCommit()
	expectUnlock(storeMock)

	result, err := executor.Execute(context.Background(), "backup-1", StrategySkip, false)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.RecordsCreated != 1 {
		t.Errorf("expected 1 created record, got %d", result.RecordsCreated)
	}
	if result.RecordsUpdated != 0 {
		t.Errorf("SKIP must never update, got %d", result.RecordsUpdated)
	}
	if result.RecordsSkipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", result.RecordsSkipped)
	}

	if err := storeMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecutor_ReplaceIsIdempotent(t *testing.T) {
	// Live state already matches the snapshot, as after a completed
	// REPLACE restore. Running again writes nothing.
	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane Doe", "phone": "555-1000"})
	executor, catalogMock, storeMock := newExecutor(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusSuccess)
	expectLock(storeMock, 1)
	storeMock.ExpectBegin()
	expectLivePatients(storeMock)
	storeMock.ExpectCommit()
	expectUnlock(storeMock)

	result, err := executor.Execute(context.Background(), "backup-1", StrategyReplace, false)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.RecordsCreated != 0 || result.RecordsUpdated != 0 {
		t.Errorf("expected idempotent run, got created=%d updated=%d",
			result.RecordsCreated, result.RecordsUpdated)
	}
}

func TestExecutor_ConcurrentRestoreFailsFast(t *testing.T) {
	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane", "phone": nil})
	executor, catalogMock, storeMock := newExecutor(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusSuccess)
	expectLock(storeMock, 0)

	_, err := executor.Execute(context.Background(), "backup-1", StrategyMerge, false)
	if err == nil {
		t.Fatal("expected error when lock is held")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeRestoreInProgress) {
		t.Errorf("expected restore_in_progress type, got %v", apperrors.GetErrorType(err))
	}
}

func TestExecutor_WriteFailureRollsBack(t *testing.T) {
	snap := patientsSnapshot(snapshot.Record{"id": float64(3), "name": "Carol", "phone": nil})
	executor, catalogMock, storeMock := newExecutor(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusSuccess)
	expectLock(storeMock, 1)
	storeMock.ExpectBegin()
	expectLivePatients(storeMock)
	storeMock.ExpectExec(regexp.QuoteMeta("INSERT INTO `patients`")).
		WillReturnError(errors.New("disk full"))
	storeMock.ExpectRollback()
	expectUnlock(storeMock)

	_, err := executor.Execute(context.Background(), "backup-1", StrategySkip, false)
	if err == nil {
		t.Fatal("expected error from failed insert")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeRestoreFailed) {
		t.Errorf("expected restore_failed type, got %v", apperrors.GetErrorType(err))
	}

	if err := storeMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecutor_BackupNotSuccessful(t *testing.T) {
	snap := patientsSnapshot(snapshot.Record{"id": float64(1), "name": "Jane", "phone": nil})
	executor, catalogMock, _ := newExecutor(t, snap)

	expectCatalogGet(catalogMock, catalog.StatusFailed)

	_, err := executor.Execute(context.Background(), "backup-1", StrategyMerge, false)
	if err == nil {
		t.Fatal("expected error for failed backup")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeBackupNotSuccessful) {
		t.Errorf("expected backup_not_successful type, got %v", apperrors.GetErrorType(err))
	}
}
