package snapshot

import (
	"context"
	"time"
)

// ObjectMetadata describes a stored snapshot envelope
type ObjectMetadata struct {
	BackupID   string    `json:"backup_id"`
	BackupType string    `json:"backup_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}

// Object is a stored snapshot envelope together with its metadata
type Object struct {
	Metadata ObjectMetadata
	Data     []byte
}

// StorageFilter narrows List results
type StorageFilter struct {
	Prefix   string
	MaxItems int
}

// StorageProvider abstracts where snapshot envelopes live
type StorageProvider interface {
	Store(ctx context.Context, obj *Object) error
	Retrieve(ctx context.Context, backupID string) (*Object, error)
	Delete(ctx context.Context, backupID string) error
	List(ctx context.Context, filter StorageFilter) ([]*ObjectMetadata, error)
	GetMetadata(ctx context.Context, backupID string) (*ObjectMetadata, error)
	HealthCheck(ctx context.Context) error
}
