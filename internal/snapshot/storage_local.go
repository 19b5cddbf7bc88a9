package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
)

const (
	envelopeFileName = "snapshot.bin"
	metadataFileName = "metadata.json"
)

// LocalStorageProvider implements StorageProvider on the local file system.
// Each snapshot lives in its own directory under the base path, with the
// envelope bytes and a metadata sidecar for quick listing.
type LocalStorageProvider struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalStorageProvider creates a new LocalStorageProvider instance
func NewLocalStorageProvider(cfg *config.LocalConfig) (*LocalStorageProvider, error) {
	if cfg == nil {
		return nil, apperrors.NewValidationError("local storage configuration is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid local storage configuration", err)
	}

	perms := os.FileMode(0755)
	if cfg.Permissions != "" {
		if parsed, err := strconv.ParseUint(cfg.Permissions, 8, 32); err == nil {
			perms = os.FileMode(parsed)
		}
	}

	provider := &LocalStorageProvider{
		basePath:    cfg.BasePath,
		permissions: perms,
	}

	if err := os.MkdirAll(provider.basePath, provider.permissions); err != nil {
		return nil, apperrors.NewStorageError("failed to create snapshot base directory", err)
	}

	return provider, nil
}

// Store saves a snapshot envelope and its metadata sidecar
func (lsp *LocalStorageProvider) Store(ctx context.Context, obj *Object) error {
	if obj == nil {
		return apperrors.NewValidationError("snapshot object cannot be nil", nil)
	}
	if obj.Metadata.BackupID == "" {
		return apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	dir := lsp.snapshotDirectory(obj.Metadata.BackupID)
	if err := os.MkdirAll(dir, lsp.permissions); err != nil {
		return apperrors.NewStorageError("failed to create snapshot directory", err)
	}

	obj.Metadata.SizeBytes = int64(len(obj.Data))

	if err := os.WriteFile(filepath.Join(dir, envelopeFileName), obj.Data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write snapshot envelope", err)
	}

	metaData, err := json.Marshal(obj.Metadata)
	if err != nil {
		return apperrors.NewStorageError("failed to serialize snapshot metadata", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFileName), metaData, 0644); err != nil {
		return apperrors.NewStorageError("failed to write snapshot metadata", err)
	}

	return nil
}

// Retrieve loads a snapshot envelope and its metadata
func (lsp *LocalStorageProvider) Retrieve(ctx context.Context, backupID string) (*Object, error) {
	if backupID == "" {
		return nil, apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	dir := lsp.snapshotDirectory(backupID)
	envelopePath := filepath.Join(dir, envelopeFileName)

	if _, err := os.Stat(envelopePath); os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found", backupID), err)
	}

	data, err := os.ReadFile(envelopePath)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read snapshot envelope", err)
	}

	metadata, err := lsp.loadMetadata(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, err
	}

	return &Object{Metadata: *metadata, Data: data}, nil
}

// Delete removes a snapshot from the local file system
func (lsp *LocalStorageProvider) Delete(ctx context.Context, backupID string) error {
	if backupID == "" {
		return apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	dir := lsp.snapshotDirectory(backupID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found", backupID), err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return apperrors.NewStorageError("failed to delete snapshot directory", err)
	}

	return nil
}

// List returns metadata for stored snapshots matching the filter
func (lsp *LocalStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*ObjectMetadata, error) {
	var results []*ObjectMetadata

	err := filepath.WalkDir(lsp.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() || path == lsp.basePath {
			return nil
		}

		metadataPath := filepath.Join(path, metadataFileName)
		if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
			return nil
		}

		metadata, err := lsp.loadMetadata(metadataPath)
		if err != nil {
			// Skip unreadable entries so one bad directory does not hide the rest
			return nil
		}

		if filter.Prefix != "" && !strings.HasPrefix(metadata.BackupID, filter.Prefix) {
			return nil
		}

		results = append(results, metadata)

		if filter.MaxItems > 0 && len(results) >= filter.MaxItems {
			return filepath.SkipAll
		}

		return nil
	})

	if err != nil {
		return nil, apperrors.NewStorageError("failed to list snapshots", err)
	}

	return results, nil
}

// GetMetadata retrieves metadata for a specific snapshot
func (lsp *LocalStorageProvider) GetMetadata(ctx context.Context, backupID string) (*ObjectMetadata, error) {
	if backupID == "" {
		return nil, apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	metadataPath := filepath.Join(lsp.snapshotDirectory(backupID), metadataFileName)
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found", backupID), err)
	}

	return lsp.loadMetadata(metadataPath)
}

// HealthCheck verifies the base directory is writable
func (lsp *LocalStorageProvider) HealthCheck(ctx context.Context) error {
	testFile := filepath.Join(lsp.basePath, ".health_check")

	if err := os.WriteFile(testFile, []byte("health_check"), 0644); err != nil {
		return apperrors.NewStorageError("cannot write to snapshot base directory", err)
	}
	if _, err := os.ReadFile(testFile); err != nil {
		return apperrors.NewStorageError("cannot read from snapshot base directory", err)
	}
	os.Remove(testFile)

	return nil
}

// BasePath returns the base path for the storage provider
func (lsp *LocalStorageProvider) BasePath() string {
	return lsp.basePath
}

func (lsp *LocalStorageProvider) snapshotDirectory(backupID string) string {
	return filepath.Join(lsp.basePath, sanitizeBackupID(backupID))
}

func (lsp *LocalStorageProvider) loadMetadata(path string) (*ObjectMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read snapshot metadata", err)
	}

	var metadata ObjectMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, apperrors.NewStorageError("failed to unmarshal snapshot metadata", err)
	}

	return &metadata, nil
}

// sanitizeBackupID removes path separators so IDs cannot escape the base path
func sanitizeBackupID(backupID string) string {
	sanitized := strings.ReplaceAll(backupID, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	sanitized = strings.ReplaceAll(sanitized, " ", "_")
	return sanitized
}
