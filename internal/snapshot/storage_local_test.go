package snapshot

import (
	"context"
	"testing"
	"time"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
)

func newLocalProvider(t *testing.T) *LocalStorageProvider {
	t.Helper()

	provider, err := NewLocalStorageProvider(&config.LocalConfig{
		BasePath:    t.TempDir(),
		Permissions: "0755",
	})
	if err != nil {
		t.Fatalf("NewLocalStorageProvider() error = %v", err)
	}
	return provider
}

func testObject(backupID string) *Object {
	return &Object{
		Metadata: ObjectMetadata{
			BackupID:   backupID,
			BackupType: "FULL",
			Checksum:   "abc123",
			CreatedAt:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		Data: []byte(`{"format_version":1,"payload":"test"}`),
	}
}

func TestLocalStorageProvider_StoreAndRetrieve(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	obj := testObject("backup-1")
	if err := provider.Store(ctx, obj); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	retrieved, err := provider.Retrieve(ctx, "backup-1")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if string(retrieved.Data) != string(obj.Data) {
		t.Error("retrieved data does not match stored data")
	}
	if retrieved.Metadata.BackupID != "backup-1" {
		t.Errorf("expected backup ID backup-1, got %s", retrieved.Metadata.BackupID)
	}
	if retrieved.Metadata.SizeBytes != int64(len(obj.Data)) {
		t.Errorf("expected size %d, got %d", len(obj.Data), retrieved.Metadata.SizeBytes)
	}
}

func TestLocalStorageProvider_RetrieveNotFound(t *testing.T) {
	provider := newLocalProvider(t)

	_, err := provider.Retrieve(context.Background(), "backup-missing")
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("expected not_found type, got %v", apperrors.GetErrorType(err))
	}
}

func TestLocalStorageProvider_Delete(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	if err := provider.Store(ctx, testObject("backup-1")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if err := provider.Delete(ctx, "backup-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := provider.Retrieve(ctx, "backup-1"); err == nil {
		t.Error("expected error retrieving deleted snapshot")
	}

	if err := provider.Delete(ctx, "backup-1"); err == nil {
		t.Error("expected error deleting missing snapshot")
	}
}

func TestLocalStorageProvider_List(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	for _, id := range []string{"backup-a", "backup-b", "other-c"} {
		if err := provider.Store(ctx, testObject(id)); err != nil {
			t.Fatalf("Store(%s) error = %v", id, err)
		}
	}

	all, err := provider.List(ctx, StorageFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 snapshots, got %d", len(all))
	}

	filtered, err := provider.List(ctx, StorageFilter{Prefix: "backup-"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("expected 2 snapshots with prefix, got %d", len(filtered))
	}

	limited, err := provider.List(ctx, StorageFilter{MaxItems: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 snapshot with max items, got %d", len(limited))
	}
}

func TestLocalStorageProvider_GetMetadata(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	if err := provider.Store(ctx, testObject("backup-1")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	metadata, err := provider.GetMetadata(ctx, "backup-1")
	if err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if metadata.BackupType != "FULL" {
		t.Errorf("expected backup type FULL, got %s", metadata.BackupType)
	}
	if metadata.Checksum != "abc123" {
		t.Errorf("expected checksum abc123, got %s", metadata.Checksum)
	}
}

func TestLocalStorageProvider_SanitizesBackupID(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	obj := testObject("../escape/attempt")
	if err := provider.Store(ctx, obj); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	retrieved, err := provider.Retrieve(ctx, "../escape/attempt")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if string(retrieved.Data) != string(obj.Data) {
		t.Error("retrieved data does not match stored data")
	}
}

func TestLocalStorageProvider_HealthCheck(t *testing.T) {
	provider := newLocalProvider(t)

	if err := provider.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestLocalStorageProvider_EmptyBackupID(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	if _, err := provider.Retrieve(ctx, ""); err == nil {
		t.Error("expected error for empty backup ID")
	}
	if err := provider.Delete(ctx, ""); err == nil {
		t.Error("expected error for empty backup ID")
	}
}
