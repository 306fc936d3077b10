package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownStorageDriver returned by NewObjectStore for an unsupported driver name
var ErrUnknownStorageDriver = errors.New("unknown storage driver")

// UploadPolicy constraints baked into a presigned upload credential
type UploadPolicy struct {
	MaxBytes    int64
	ContentType string // optional, bound with an eq condition when set
	Expiry      time.Duration
}

// UploadCredential presigned POST: the client sends Fields as multipart form data to URL
type UploadCredential struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// ObjectStore object storage primitives used by the pipeline
type ObjectStore interface {
	PresignUpload(ctx context.Context, bucket, key string, policy UploadPolicy) (*UploadCredential, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	DownloadFile(ctx context.Context, bucket, key, destPath string) error
	UploadFile(ctx context.Context, bucket, key, srcPath, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	PresignGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// NewObjectStore create the ObjectStore for driver ("minio" or "s3") with retry
func NewObjectStore(ctx context.Context, driver string, d StorageConnection) (ObjectStore, error) {
	switch driver {
	case "", "minio":
		mc, err := NewMinIOConnection(d)
		if err != nil {
			return nil, err
		}
		return mc, nil
	case "s3":
		sc, err := NewS3Connection(ctx, d)
		if err != nil {
			return nil, err
		}
		return sc, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorageDriver, driver)
	}
}
