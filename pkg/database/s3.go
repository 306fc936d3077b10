package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"video_pipeline_service/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"go.uber.org/zap"
)

// S3Client ObjectStore backed by aws-sdk-go-v2, for AWS S3 or any S3 compatible endpoint
type S3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Connection create a new s3 client have retry
func NewS3Connection(ctx context.Context, d StorageConnection) (*S3Client, error) {
	var sc *S3Client
	var err error

	for i := 1; i <= d.RetryCount; i++ {
		sc, err = NewS3Client(ctx, d)
		if err == nil {
			logger.Log.Info("s3 connected", zap.String("endpoint", d.Endpoint), zap.Int("attempt", i))
			return sc, nil
		}
		logger.Log.Warn("s3 connect failed, retrying...",
			zap.String("endpoint", d.Endpoint),
			zap.Int("attempt", i),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval * time.Second)
	}
	return sc, err
}

// NewS3Client build the client, path-style when a custom endpoint is set
func NewS3Client(ctx context.Context, d StorageConnection) (*S3Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(d.Region),
	}
	if d.User != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(d.User, d.Password, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if d.Endpoint != "" {
			scheme := "http://"
			if d.UseSSL {
				scheme = "https://"
			}
			o.BaseEndpoint = aws.String(scheme + d.Endpoint)
			o.UsePathStyle = true
		}
	})

	for _, bucket := range d.Buckets {
		if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
			continue
		}
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
			return nil, fmt.Errorf("create bucket [%s]: %w", bucket, err)
		}
		logger.Log.Info("bucket created", zap.String("bucket", bucket))
	}

	return &S3Client{client: client, presign: s3.NewPresignClient(client)}, nil
}

// PresignUpload presigned POST with content-length-range and optional Content-Type condition
func (s *S3Client) PresignUpload(ctx context.Context, bucket, key string, p UploadPolicy) (*UploadCredential, error) {
	conditions := []interface{}{
		[]interface{}{"content-length-range", 0, p.MaxBytes},
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if p.ContentType != "" {
		conditions = append(conditions, []interface{}{"eq", "$Content-Type", p.ContentType})
	}

	req, err := s.presign.PresignPostObject(ctx, input, func(o *s3.PresignPostOptions) {
		o.Expires = p.Expiry
		o.Conditions = conditions
	})
	if err != nil {
		return nil, fmt.Errorf("presign post object: %w", err)
	}

	fields := make(map[string]string, len(req.Values)+1)
	for k, v := range req.Values {
		fields[k] = v
	}
	if p.ContentType != "" {
		fields["Content-Type"] = p.ContentType
	}
	return &UploadCredential{URL: req.URL, Fields: fields, ExpiresAt: time.Now().UTC().Add(p.Expiry)}, nil
}

// Exists HeadObject, false on 404
func (s *S3Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("head object [%s/%s]: %w", bucket, key, err)
}

// DownloadFile GetObject into destPath
func (s *S3Client) DownloadFile(ctx context.Context, bucket, key, destPath string) error {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("get object [%s/%s]: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		return fmt.Errorf("write object data: %w", err)
	}
	return nil
}

// UploadFile PutObject from srcPath
func (s *S3Client) UploadFile(ctx context.Context, bucket, key, srcPath, contentType string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		Body:              file,
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	})
	if err != nil {
		return fmt.Errorf("put object [%s/%s]: %w", bucket, key, err)
	}
	return nil
}

// Delete DeleteObject
func (s *S3Client) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("delete object [%s/%s]: %w", bucket, key, err)
	}
	return nil
}

// PresignGetURL presigned GetObject url
func (s *S3Client) PresignGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign get url: %w", err)
	}
	return req.URL, nil
}
