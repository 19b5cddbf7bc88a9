package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
)

// S3StorageProvider implements StorageProvider for Amazon S3
type S3StorageProvider struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3StorageProvider creates a new S3StorageProvider instance
func NewS3StorageProvider(cfg *config.S3Config) (*S3StorageProvider, error) {
	if cfg == nil {
		return nil, apperrors.NewValidationError("S3 storage configuration is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid S3 storage configuration", err)
	}

	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create AWS session", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "snapshots/"
	}

	return &S3StorageProvider{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

// Store uploads a snapshot envelope and metadata sidecar to S3
func (s3p *S3StorageProvider) Store(ctx context.Context, obj *Object) error {
	if obj == nil {
		return apperrors.NewValidationError("snapshot object cannot be nil", nil)
	}
	if obj.Metadata.BackupID == "" {
		return apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	obj.Metadata.SizeBytes = int64(len(obj.Data))
	objectKey := s3p.objectKey(obj.Metadata.BackupID)

	_, err := s3p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3p.bucket),
		Key:         aws.String(objectKey + "/" + envelopeFileName),
		Body:        bytes.NewReader(obj.Data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]*string{
			"backup-id":   aws.String(obj.Metadata.BackupID),
			"backup-type": aws.String(obj.Metadata.BackupType),
			"checksum":    aws.String(obj.Metadata.Checksum),
		},
	})
	if err != nil {
		return apperrors.NewStorageError("failed to upload snapshot to S3", err)
	}

	metaData, err := json.Marshal(obj.Metadata)
	if err != nil {
		return apperrors.NewStorageError("failed to serialize snapshot metadata", err)
	}

	_, err = s3p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3p.bucket),
		Key:         aws.String(objectKey + "/" + metadataFileName),
		Body:        bytes.NewReader(metaData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return apperrors.NewStorageError("failed to upload snapshot metadata to S3", err)
	}

	return nil
}

// Retrieve downloads a snapshot envelope and metadata from S3
func (s3p *S3StorageProvider) Retrieve(ctx context.Context, backupID string) (*Object, error) {
	if backupID == "" {
		return nil, apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	result, err := s3p.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3p.bucket),
		Key:    aws.String(s3p.objectKey(backupID) + "/" + envelopeFileName),
	})
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in S3", backupID), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read snapshot envelope", err)
	}

	metadata, err := s3p.GetMetadata(ctx, backupID)
	if err != nil {
		return nil, err
	}

	return &Object{Metadata: *metadata, Data: data}, nil
}

// Delete removes all objects for a snapshot from S3
func (s3p *S3StorageProvider) Delete(ctx context.Context, backupID string) error {
	if backupID == "" {
		return apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	objectPrefix := s3p.objectKey(backupID)

	listResult, err := s3p.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s3p.bucket),
		Prefix: aws.String(objectPrefix),
	})
	if err != nil {
		return apperrors.NewStorageError("failed to list snapshot objects", err)
	}

	if len(listResult.Contents) == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in S3", backupID), nil)
	}

	var objectsToDelete []*s3.ObjectIdentifier
	for _, obj := range listResult.Contents {
		objectsToDelete = append(objectsToDelete, &s3.ObjectIdentifier{Key: obj.Key})
	}

	_, err = s3p.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s3p.bucket),
		Delete: &s3.Delete{Objects: objectsToDelete},
	})
	if err != nil {
		return apperrors.NewStorageError("failed to delete snapshot objects from S3", err)
	}

	return nil
}

// List returns metadata for stored snapshots matching the filter
func (s3p *S3StorageProvider) List(ctx context.Context, filter StorageFilter) ([]*ObjectMetadata, error) {
	var results []*ObjectMetadata

	prefix := s3p.prefix
	if filter.Prefix != "" {
		prefix = s3p.prefix + filter.Prefix
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s3p.bucket),
		Prefix: aws.String(prefix),
	}

	err := s3p.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				if !strings.HasSuffix(*obj.Key, "/"+metadataFileName) {
					continue
				}

				backupID := s3p.backupIDFromKey(*obj.Key)
				if backupID == "" {
					continue
				}

				metadata, err := s3p.GetMetadata(ctx, backupID)
				if err != nil {
					continue
				}

				results = append(results, metadata)

				if filter.MaxItems > 0 && len(results) >= filter.MaxItems {
					return false
				}
			}
			return true
		})

	if err != nil {
		return nil, apperrors.NewStorageError("failed to list snapshots from S3", err)
	}

	return results, nil
}

// GetMetadata retrieves metadata for a specific snapshot
func (s3p *S3StorageProvider) GetMetadata(ctx context.Context, backupID string) (*ObjectMetadata, error) {
	if backupID == "" {
		return nil, apperrors.NewValidationError("backup ID cannot be empty", nil)
	}

	result, err := s3p.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3p.bucket),
		Key:    aws.String(s3p.objectKey(backupID) + "/" + metadataFileName),
	})
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("snapshot %s not found in S3", backupID), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
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
func (s3p *S3StorageProvider) HealthCheck(ctx context.Context) error {
	_, err := s3p.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s3p.bucket),
	})
	if err != nil {
		return apperrors.NewStorageError("S3 bucket not accessible", err)
	}

	_, err = s3p.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s3p.bucket),
		Prefix:  aws.String(s3p.prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return apperrors.NewStorageError("cannot list objects in S3 bucket", err)
	}

	return nil
}

func (s3p *S3StorageProvider) objectKey(backupID string) string {
	return s3p.prefix + sanitizeBackupID(backupID)
}

func (s3p *S3StorageProvider) backupIDFromKey(objectKey string) string {
	if !strings.HasPrefix(objectKey, s3p.prefix) {
		return ""
	}
	withoutPrefix := strings.TrimPrefix(objectKey, s3p.prefix)
	if !strings.HasSuffix(withoutPrefix, "/"+metadataFileName) {
		return ""
	}
	return strings.TrimSuffix(withoutPrefix, "/"+metadataFileName)
}
