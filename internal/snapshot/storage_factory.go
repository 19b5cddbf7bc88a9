package snapshot

import (
	"context"
	"fmt"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
)

// StorageProviderFactory creates storage providers based on configuration
type StorageProviderFactory struct{}

// NewStorageProviderFactory creates a new storage provider factory
func NewStorageProviderFactory() *StorageProviderFactory {
	return &StorageProviderFactory{}
}

// CreateStorageProvider creates a storage provider based on the storage configuration
func (spf *StorageProviderFactory) CreateStorageProvider(ctx context.Context, cfg config.StorageConfig) (StorageProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid storage configuration", err)
	}

	switch cfg.Provider {
	case "local":
		return NewLocalStorageProvider(cfg.Local)
	case "s3":
		return NewS3StorageProvider(cfg.S3)
	case "azure":
		return NewAzureStorageProvider(cfg.Azure)
	case "gcs":
		return NewGCSStorageProvider(ctx, cfg.GCS)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported storage provider: %s", cfg.Provider), nil)
	}
}

// SupportedProviders returns the supported storage provider names
func (spf *StorageProviderFactory) SupportedProviders() []string {
	return []string{"local", "s3", "azure", "gcs"}
}
