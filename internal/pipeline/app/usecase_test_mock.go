package app

import (
	"context"
	"time"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/pkg/database"

	"github.com/stretchr/testify/mock"
)

// MockPendingJobRepo Mock PendingJobRepo
type MockPendingJobRepo struct {
	mock.Mock
}

// AutoMigrate mock
func (m *MockPendingJobRepo) AutoMigrate() error {
	return m.Called().Error(0)
}

// Create mock create pending job
func (m *MockPendingJobRepo) Create(ctx context.Context, job *domain.PendingJob) error {
	return m.Called(ctx, job).Error(0)
}

// GetByKey mock get job by storage key
func (m *MockPendingJobRepo) GetByKey(ctx context.Context, storageKey string) (*domain.PendingJob, error) {
	args := m.Called(ctx, storageKey)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.PendingJob), args.Error(1)
	}
	return nil, args.Error(1)
}

// CountByOwnerStatus mock
func (m *MockPendingJobRepo) CountByOwnerStatus(ctx context.Context, ownerID string, status domain.JobStatus) (int64, error) {
	args := m.Called(ctx, ownerID, status)
	return args.Get(0).(int64), args.Error(1)
}

// ListByOwner mock
func (m *MockPendingJobRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.PendingJob, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.PendingJob), args.Error(1)
	}
	return nil, args.Error(1)
}

// Transition mock conditional status update
func (m *MockPendingJobRepo) Transition(ctx context.Context, storageKey string, from, to domain.JobStatus) (bool, error) {
	args := m.Called(ctx, storageKey, from, to)
	return args.Bool(0), args.Error(1)
}

// ClaimNext mock
func (m *MockPendingJobRepo) ClaimNext(ctx context.Context) (*domain.PendingJob, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.PendingJob), args.Error(1)
	}
	return nil, args.Error(1)
}

// Fail mock
func (m *MockPendingJobRepo) Fail(ctx context.Context, storageKey, reason string) (bool, error) {
	args := m.Called(ctx, storageKey, reason)
	return args.Bool(0), args.Error(1)
}

// CompleteJob mock, runs build on the job given as the fourth return value when present
func (m *MockPendingJobRepo) CompleteJob(ctx context.Context, storageKey string, build func(*domain.PendingJob) *domain.Video) (*domain.Video, bool, error) {
	args := m.Called(ctx, storageKey, build)
	if job, ok := args.Get(3).(*domain.PendingJob); ok && job != nil {
		return build(job), args.Bool(1), args.Error(2)
	}
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Video), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

// FindStale mock
func (m *MockPendingJobRepo) FindStale(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PendingJob, error) {
	args := m.Called(ctx, createdBefore, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.PendingJob), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindFinished mock
func (m *MockPendingJobRepo) FindFinished(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.PendingJob, error) {
	args := m.Called(ctx, updatedBefore, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.PendingJob), args.Error(1)
	}
	return nil, args.Error(1)
}

// DeleteIfStatus mock
func (m *MockPendingJobRepo) DeleteIfStatus(ctx context.Context, id uint, status domain.JobStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

// ReclaimStuck mock
func (m *MockPendingJobRepo) ReclaimStuck(ctx context.Context, claimedBefore time.Time) (int64, error) {
	args := m.Called(ctx, claimedBefore)
	return args.Get(0).(int64), args.Error(1)
}

// MockVideoRepo Mock VideoRepo
type MockVideoRepo struct {
	mock.Mock
}

// GetByID mock
func (m *MockVideoRepo) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

// GetBySourceKey mock
func (m *MockVideoRepo) GetBySourceKey(ctx context.Context, sourceKey string) (*domain.Video, error) {
	args := m.Called(ctx, sourceKey)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

// Update mock
func (m *MockVideoRepo) Update(ctx context.Context, id string, req domain.UpdateVideoReq) (*domain.Video, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

// Delete mock
func (m *MockVideoRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockObjectStore Mock database.ObjectStore
type MockObjectStore struct {
	mock.Mock
}

// PresignUpload mock
func (m *MockObjectStore) PresignUpload(ctx context.Context, bucket, key string, policy database.UploadPolicy) (*database.UploadCredential, error) {
	args := m.Called(ctx, bucket, key, policy)
	if args.Get(0) != nil {
		return args.Get(0).(*database.UploadCredential), args.Error(1)
	}
	return nil, args.Error(1)
}

// Exists mock
func (m *MockObjectStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	args := m.Called(ctx, bucket, key)
	return args.Bool(0), args.Error(1)
}

// DownloadFile mock
func (m *MockObjectStore) DownloadFile(ctx context.Context, bucket, key, destPath string) error {
	return m.Called(ctx, bucket, key, destPath).Error(0)
}

// UploadFile mock
func (m *MockObjectStore) UploadFile(ctx context.Context, bucket, key, srcPath, contentType string) error {
	return m.Called(ctx, bucket, key, srcPath, contentType).Error(0)
}

// Delete mock
func (m *MockObjectStore) Delete(ctx context.Context, bucket, key string) error {
	return m.Called(ctx, bucket, key).Error(0)
}

// PresignGetURL mock
func (m *MockObjectStore) PresignGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiry)
	return args.String(0), args.Error(1)
}

// MockCache Mock database.RedisRepository[string]
type MockCache struct {
	mock.Mock
}

// Set mock
func (m *MockCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

// Get mock
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// Del mock
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// GetTTL mock
func (m *MockCache) GetTTL(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

// ExtendTTL mock
func (m *MockCache) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(ctx, key, ttl).Error(0)
}

// MockLocker Mock Locker
type MockLocker struct {
	mock.Mock
	Released int
}

// TryLock mock
func (m *MockLocker) TryLock(ctx context.Context, key int64) (func(), bool, error) {
	args := m.Called(ctx, key)
	if !args.Bool(0) {
		return nil, false, args.Error(1)
	}
	return func() { m.Released++ }, true, args.Error(1)
}
