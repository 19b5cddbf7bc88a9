package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
)

// AzureStorageProvider implements StorageProvider for Azure Blob Storage
type AzureStorageProvider struct {
	serviceURL    azblob.ServiceURL
	containerName string
	prefix        string
}

// NewAzureStorageProvider creates a new AzureStorageProvider instance
func NewAzureStorageProvider(cfg *config.AzureConfig) (*AzureStorageProvider, error) {
	if cfg == nil {
		return nil, apperrors.NewValidationError("Azure storage configuration is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid Azure storage configuration", err)
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureStorageProvider{
		serviceURL:    azblob.NewServiceURL(*serviceURL, pipeline),
		containerName: cfg.ContainerName,
		prefix:        "snapshots/",
	}, nil
}

// Store uploads a snapshot envelope and metadata sidecar to Azure
func (azp *AzureStorageProvider) Store(ctx context.Context, obj *Object) error {
	if obj == nil {
		return apperrors.NewValidationError("snapshot object cannot be nil", nil)
	}
	if obj.Metadata.BackupID == "" {
		return apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	obj.Metadata.SizeBytes = int64(len(obj.Data))
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)
	blobName := azp.blobName(obj.Metadata.BackupID)

	envelopeBlobURL := containerURL.NewBlockBlobURL(blobName + "/" + envelopeFileName)
	_, err := azblob.UploadBufferToBlockBlob(ctx, obj.Data, envelopeBlobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		Metadata: azblob.Metadata{
			"backup_id":   obj.Metadata.BackupID,
			"backup_type": obj.Metadata.BackupType,
			"checksum":    obj.Metadata.Checksum,
		},
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return apperrors.NewStorageError("failed to upload snapshot to Azure", err)
	}

	metaData, err := json.Marshal(obj.Metadata)
	if err != nil {
		return apperrors.NewStorageError("failed to serialize snapshot metadata", err)
	}

	metadataBlobURL := containerURL.NewBlockBlobURL(blobName + "/" + metadataFileName)
	_, err = azblob.UploadBufferToBlockBlob(ctx, metaData, metadataBlobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/json",
		},
	})
	if err != nil {
		return apperrors.NewStorageError("failed to upload snapshot metadata to Azure", err)
	}

	return nil
}

// Retrieve downloads a snapshot envelope and metadata from Azure
func (azp *AzureStorageProvider) Retrieve(ctx context.Context, backupID string) (*Object, error) {
	if backupID == "" {
		return nil, apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)
	blobURL := containerURL.NewBlockBlobURL(azp.blobName(backupID) + "/" + envelopeFileName)

	downloadResponse, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in Azure", backupID), err)
	}

	bodyStream := downloadResponse.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer bodyStream.Close()

	data, err := io.ReadAll(bodyStream)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read snapshot envelope", err)
	}

	metadata, err := azp.GetMetadata(ctx, backupID)
	if err != nil {
		return nil, err
	}

	return &Object{Metadata: *metadata, Data: data}, nil
}

// Delete removes all blobs for a snapshot from Azure
func (azp *AzureStorageProvider) Delete(ctx context.Context, backupID string) error {
	if backupID == "" {
		return apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)
	blobPrefix := azp.blobName(backupID)

	deleted := 0
	for marker := (azblob.Marker{}); marker.NotDone(); {
		listResponse, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: blobPrefix,
		})
		if err != nil {
			return apperrors.NewStorageError("failed to list snapshot blobs", err)
		}
		marker = listResponse.NextMarker

		for _, blobInfo := range listResponse.Segment.BlobItems {
			blobURL := containerURL.NewBlockBlobURL(blobInfo.Name)
			if _, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{}); err != nil {
				return apperrors.NewStorageError(fmt.Sprintf("failed to delete blob %s", blobInfo.Name), err)
			}
			deleted++
		}
	}

	if deleted == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in Azure", backupID), nil)
	}

	return nil
}

// List returns metadata for stored snapshots matching the filter
func (azp *AzureStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*ObjectMetadata, error) {
	var results []*ObjectMetadata

	prefix := azp.prefix
	if filter.Prefix != "" {
		prefix = azp.prefix + filter.Prefix
	}

	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	for marker := (azblob.Marker{}); marker.NotDone(); {
		listResponse, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return nil, apperrors.NewStorageError("failed to list snapshots from Azure", err)
		}
		marker = listResponse.NextMarker

		for _, blobInfo := range listResponse.Segment.BlobItems {
			if !strings.HasSuffix(blobInfo.Name, "/"+metadataFileName) {
				continue
			}

			backupID := azp.backupIDFromBlobName(blobInfo.Name)
			if backupID == "" {
				continue
			}

			metadata, err := azp.GetMetadata(ctx, backupID)
			if err != nil {
				continue
			}

			results = append(results, metadata)

			if filter.MaxItems > 0 && len(results) >= filter.MaxItems {
				return results, nil
			}
		}
	}

	return results, nil
}

// GetMetadata retrieves metadata for a specific snapshot
func (azp *AzureStorageProvider) GetMetadata(ctx context.Context, backupID string) (*ObjectMetadata, error) {
	if backupID == "" {
		return nil, apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)
	blobURL := containerURL.NewBlockBlobURL(azp.blobName(backupID) + "/" + metadataFileName)

	downloadResponse, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in Azure", backupID), err)
	}

	bodyStream := downloadResponse.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer bodyStream.Close()

	data, err := io.ReadAll(bodyStream)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read snapshot metadata", err)
	}

	var metadata ObjectMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, apperrors.NewStorageError("failed to unmarshal snapshot metadata", err)
	}

	return &metadata, nil
}

// HealthCheck verifies the container is accessible
func (azp *AzureStorageProvider) HealthCheck(ctx context.Context) error {
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	_, err := containerURL.GetProperties(ctx, azblob.LeaseAccessConditions{})
	if err != nil {
		return apperrors.NewStorageError("Azure container not accessible", err)
	}

	return nil
}

func (azp *AzureStorageProvider) blobName(backupID string) string {
	return azp.prefix + sanitizeBackupID(backupID)
}

func (azp *AzureStorageProvider) backupIDFromBlobName(blobName string) string {
	if !strings.HasPrefix(blobName, azp.prefix) {
		return ""
	}
	withoutPrefix := strings.TrimPrefix(blobName, azp.prefix)
	if !strings.HasSuffix(withoutPrefix, "/"+metadataFileName) {
		return ""
	}
	return strings.TrimSuffix(withoutPrefix, "/"+metadataFileName)
}
