package database

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"video_pipeline_service/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOClient definition minio client
type MinIOClient struct {
	Client *minio.Client
}

// NewMinIOConnection create a new minio connection have retry
func NewMinIOConnection(d StorageConnection) (*MinIOClient, error) {
	var mc *MinIOClient
	var err error

	for i := 1; i <= d.RetryCount; i++ {
		mc, err = NewMinioClient(d.Endpoint, d.User, d.Password, d.UseSSL, d.Buckets...)
		if err == nil {
			logger.Log.Info("minIO connected", zap.String("endpoint", d.Endpoint), zap.Int("attempt", i))
			return mc, nil
		}

		logger.Log.Warn("minIO connect failed, retrying...",
			zap.String("endpoint", d.Endpoint),
			zap.Int("attempt", i),
			zap.Int("max", d.RetryCount),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval * time.Second)
	}

	return mc, err
}

// NewMinioClient create a new minio client and make sure buckets exist
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool, buckets ...string) (*MinIOClient, error) {
	minioClient, err := minio.New(endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	ctx := context.Background()
	for _, bucketName := range buckets {
		exists, err := minioClient.BucketExists(ctx, bucketName)
		if err != nil {
			return nil, fmt.Errorf("check bucket [%s]: %w", bucketName, err)
		}
		if exists {
			continue
		}
		if err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket [%s]: %w", bucketName, err)
		}
		logger.Log.Info("bucket created", zap.String("bucket", bucketName))
	}

	return &MinIOClient{Client: minioClient}, nil
}

// PresignUpload presigned POST policy limited by size, expiry and optional content type
func (m *MinIOClient) PresignUpload(ctx context.Context, bucket, key string, p UploadPolicy) (*UploadCredential, error) {
	expiresAt := time.Now().UTC().Add(p.Expiry)

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(bucket); err != nil {
		return nil, err
	}
	if err := policy.SetKey(key); err != nil {
		return nil, err
	}
	if err := policy.SetExpires(expiresAt); err != nil {
		return nil, err
	}
	if err := policy.SetContentLengthRange(0, p.MaxBytes); err != nil {
		return nil, err
	}
	if p.ContentType != "" {
		if err := policy.SetContentType(p.ContentType); err != nil {
			return nil, err
		}
	}

	u, fields, err := m.Client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("presign post policy: %w", err)
	}
	return &UploadCredential{URL: u.String(), Fields: fields, ExpiresAt: expiresAt}, nil
}

// Exists stat the object, false on NoSuchKey
func (m *MinIOClient) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := m.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("stat object [%s/%s]: %w", bucket, key, err)
}

// UploadFile minio upload file func
func (m *MinIOClient) UploadFile(ctx context.Context, bucket, objectName, filePath, contentType string) error {
	_, err := m.Client.FPutObject(ctx, bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object [%s/%s]: %w", bucket, objectName, err)
	}
	return nil
}

// DownloadFile minio download file func
func (m *MinIOClient) DownloadFile(ctx context.Context, bucket, objectName, destPath string) error {
	if err := m.Client.FGetObject(ctx, bucket, objectName, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("get object [%s/%s]: %w", bucket, objectName, err)
	}
	return nil
}

// Delete remove object, missing objects are not an error
func (m *MinIOClient) Delete(ctx context.Context, bucket, key string) error {
	if err := m.Client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object [%s/%s]: %w", bucket, key, err)
	}
	return nil
}

// PresignGetURL 生成一個 Presigned URL 用來獲取指定的 object
func (m *MinIOClient) PresignGetURL(ctx context.Context, bucket, objectName string, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	presignedURL, err := m.Client.PresignedGetObject(ctx, bucket, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign get url: %w", err)
	}
	return presignedURL.String(), nil
}
