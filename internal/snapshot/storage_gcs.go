package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
)

// GCSStorageProvider implements StorageProvider for Google Cloud Storage
type GCSStorageProvider struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewGCSStorageProvider creates a new GCSStorageProvider instance
func NewGCSStorageProvider(ctx context.Context, cfg *config.GCSConfig) (*GCSStorageProvider, error) {
	if cfg == nil {
		return nil, apperrors.NewValidationError("GCS storage configuration is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid GCS storage configuration", err)
	}

	var client *storage.Client
	var err error

	if cfg.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create GCS client", err)
	}

	return &GCSStorageProvider{
		client:     client,
		bucketName: cfg.Bucket,
		prefix:     "snapshots/",
	}, nil
}

// Store uploads a snapshot envelope and metadata sidecar to GCS
func (gcsp *GCSStorageProvider) Store(ctx context.Context, obj *Object) error {
	if obj == nil {
		return apperrors.NewValidationError("snapshot object cannot be nil", nil)
	}
	if obj.Metadata.BackupID == "" {
		return apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	obj.Metadata.SizeBytes = int64(len(obj.Data))
	bucket := gcsp.client.Bucket(gcsp.bucketName)
	objectName := gcsp.objectName(obj.Metadata.BackupID)

	envelopeWriter := bucket.Object(objectName + "/" + envelopeFileName).NewWriter(ctx)
	envelopeWriter.ContentType = "application/octet-stream"
	envelopeWriter.Metadata = map[string]string{
		"backup-id":   obj.Metadata.BackupID,
		"backup-type": obj.Metadata.BackupType,
		"checksum":    obj.Metadata.Checksum,
	}

	if _, err := envelopeWriter.Write(obj.Data); err != nil {
		envelopeWriter.Close()
		return apperrors.NewStorageError("failed to write snapshot to GCS", err)
	}
	if err := envelopeWriter.Close(); err != nil {
		return apperrors.NewStorageError("failed to upload snapshot to GCS", err)
	}

	metaData, err := json.Marshal(obj.Metadata)
	if err != nil {
		return apperrors.NewStorageError("failed to serialize snapshot metadata", err)
	}

	metadataWriter := bucket.Object(objectName + "/" + metadataFileName).NewWriter(ctx)
	metadataWriter.ContentType = "application/json"

	if _, err := metadataWriter.Write(metaData); err != nil {
		metadataWriter.Close()
		return apperrors.NewStorageError("failed to write snapshot metadata to GCS", err)
	}
	if err := metadataWriter.Close(); err != nil {
		return apperrors.NewStorageError("failed to upload snapshot metadata to GCS", err)
	}

	return nil
}

// Retrieve downloads a snapshot envelope and metadata from GCS
func (gcsp *GCSStorageProvider) Retrieve(ctx context.Context, backupID string) (*Object, error) {
	if backupID == "" {
		return nil, apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	bucket := gcsp.client.Bucket(gcsp.bucketName)
	reader, err := bucket.Object(gcsp.objectName(backupID) + "/" + envelopeFileName).NewReader(ctx)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in GCS", backupID), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read snapshot envelope", err)
	}

	metadata, err := gcsp.GetMetadata(ctx, backupID)
	if err != nil {
		return nil, err
	}

	return &Object{Metadata: *metadata, Data: data}, nil
}

// Delete removes all objects for a snapshot from GCS
func (gcsp *GCSStorageProvider) Delete(ctx context.Context, backupID string) error {
	if backupID == "" {
		return apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	bucket := gcsp.client.Bucket(gcsp.bucketName)
	it := bucket.Objects(ctx, &storage.Query{Prefix: gcsp.objectName(backupID)})

	var objectsToDelete []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return apperrors.NewStorageError("failed to list snapshot objects", err)
		}
		objectsToDelete = append(objectsToDelete, attrs.Name)
	}

	if len(objectsToDelete) == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in GCS", backupID), nil)
	}

	for _, name := range objectsToDelete {
		if err := bucket.Object(name).Delete(ctx); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to delete object %s", name), err)
		}
	}

	return nil
}

// List returns metadata for stored snapshots matching the filter
func (gcsp *GCSStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*ObjectMetadata, error) {
	var results []*ObjectMetadata

	prefix := gcsp.prefix
	if filter.Prefix != "" {
		prefix = gcsp.prefix + filter.Prefix
	}

	bucket := gcsp.client.Bucket(gcsp.bucketName)
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperrors.NewStorageError("failed to list snapshots from GCS", err)
		}

		if !strings.HasSuffix(attrs.Name, "/"+metadataFileName) {
			continue
		}

		backupID := gcsp.backupIDFromObjectName(attrs.Name)
		if backupID == "" {
			continue
		}

		metadata, err := gcsp.GetMetadata(ctx, backupID)
		if err != nil {
			continue
		}

		results = append(results, metadata)

		if filter.MaxItems > 0 && len(results) >= filter.MaxItems {
			break
		}
	}

	return results, nil
}

// GetMetadata retrieves metadata for a specific snapshot
func (gcsp *GCSStorageProvider) GetMetadata(ctx context.Context, backupID string) (*ObjectMetadata, error) {
	if backupID == "" {
		return nil, apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	bucket := gcsp.client.Bucket(gcsp.bucketName)
	reader, err := bucket.Object(gcsp.objectName(backupID) + "/" + metadataFileName).NewReader(ctx)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in GCS", backupID), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read snapshot metadata", err)
	}

	var metadata ObjectMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, apperrors.NewStorageError("failed to unmarshal snapshot metadata", err)
	}

	return &metadata, nil
}

// HealthCheck verifies the bucket is accessible
func (gcsp *GCSStorageProvider) HealthCheck(ctx context.Context) error {
	bucket := gcsp.client.Bucket(gcsp.bucketName)

	if _, err := bucket.Attrs(ctx); err != nil {
		return apperrors.NewStorageError("GCS bucket not accessible", err)
	}

	it := bucket.Objects(ctx, &storage.Query{Prefix: gcsp.prefix})
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return apperrors.NewStorageError("cannot list objects in GCS bucket", err)
	}

	return nil
}

// Close closes the GCS client
func (gcsp *GCSStorageProvider) Close() error {
	return gcsp.client.Close()
}

func (gcsp *GCSStorageProvider) objectName(backupID string) string {
	return gcsp.prefix + sanitizeBackupID(backupID)
}

func (gcsp *GCSStorageProvider) backupIDFromObjectName(objectName string) string {
	if !strings.HasPrefix(objectName, gcsp.prefix) {
		return ""
	}
	withoutPrefix := strings.TrimPrefix(objectName, gcsp.prefix)
	if !strings.HasSuffix(withoutPrefix, "/"+metadataFileName) {
		return ""
	}
	return strings.TrimSuffix(withoutPrefix, "/"+metadataFileName)
}
