package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/internal/pipeline/repository"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	errprocess "video_pipeline_service/pkg/err"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"

	"go.uber.org/zap"
)

// UploadUseCase upload intent registrar and completion receiver
type UploadUseCase interface {
	Initiate(ctx context.Context, ownerID string, req domain.InitiateReq) (*domain.InitiateRes, error)
	Complete(ctx context.Context, ownerID, storageKey string) error
	ListPending(ctx context.Context, ownerID string) ([]domain.PendingJob, error)
}

type uploadUseCase struct {
	repo          repository.PendingJobRepo
	store         database.ObjectStore
	uploadsBucket string
	cfg           config.UploadConfig
}

// NewUploadUseCase 建立一個新的 UploadUseCase
func NewUploadUseCase(repo repository.PendingJobRepo, store database.ObjectStore, uploadsBucket string, cfg config.UploadConfig) UploadUseCase {
	return &uploadUseCase{
		repo:          repo,
		store:         store,
		uploadsBucket: uploadsBucket,
		cfg:           cfg,
	}
}

// 這個變數會在測試時被覆蓋
var timeNow = time.Now

// Initiate check the concurrency cap, presign a POST for a fresh key and record the intent
func (u *uploadUseCase) Initiate(ctx context.Context, ownerID string, req domain.InitiateReq) (*domain.InitiateRes, error) {
	if strings.TrimSpace(req.Filename) == "" {
		metrics.UploadsInitiated.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, errprocess.Validation("filename is required")
	}
	if req.Visibility != nil && !req.Visibility.Valid() {
		metrics.UploadsInitiated.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, errprocess.Validation("visibility must be one of hidden, link-only, public")
	}

	// count then insert, two concurrent calls may both pass
	n, err := u.repo.CountByOwnerStatus(ctx, ownerID, domain.JobInitiated)
	if err != nil {
		metrics.UploadsInitiated.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, errprocess.Set(fmt.Sprintf("ownerID[%s] count initiated uploads failed: %v", ownerID, err))
	}
	if n >= int64(u.cfg.MaxConcurrentInitiated) {
		metrics.UploadsInitiated.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, errprocess.RateLimit(fmt.Sprintf("at most %d uploads may be in progress", u.cfg.MaxConcurrentInitiated))
	}

	key := domain.NewUploadKey(ownerID, req.Filename)
	cred, err := u.store.PresignUpload(ctx, u.uploadsBucket, key, database.UploadPolicy{
		MaxBytes:    u.cfg.MaxBytes,
		ContentType: req.ContentType,
		Expiry:      u.cfg.CredentialTTL,
	})
	if err != nil {
		metrics.UploadsInitiated.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, errprocess.Set(fmt.Sprintf("storageKey[%s] presign upload failed: %v", key, err))
	}

	now := timeNow().UTC()
	job := &domain.PendingJob{
		OwnerID:          ownerID,
		StorageKey:       key,
		OriginalFilename: req.Filename,
		ContentType:      req.ContentType,
		Title:            req.Title,
		Description:      req.Description,
		Visibility:       req.Visibility,
		Status:           domain.JobInitiated,
		CreatedAt:        now,
		ExpiresAt:        now.Add(u.cfg.PendingTTL),
	}
	if err := u.repo.Create(ctx, job); err != nil {
		metrics.UploadsInitiated.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, errprocess.Set(fmt.Sprintf("storageKey[%s] create pending job failed: %v", key, err))
	}

	metrics.UploadsInitiated.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.Log.Info("upload initiated", zap.String("owner_id", ownerID), zap.String("storage_key", key))
	return &domain.InitiateRes{
		StorageKey: key,
		Upload:     cred,
		ExpiresAt:  job.ExpiresAt,
	}, nil
}

// Complete confirm the object landed and queue the job. A job already past initiated is left alone.
func (u *uploadUseCase) Complete(ctx context.Context, ownerID, storageKey string) error {
	if strings.TrimSpace(storageKey) == "" {
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return errprocess.Validation("storageKey is required")
	}

	job, err := u.repo.GetByKey(ctx, storageKey)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return errprocess.NotFound("upload not found")
	}
	if err != nil {
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeError).Inc()
		return errprocess.Set(fmt.Sprintf("storageKey[%s] get pending job failed: %v", storageKey, err))
	}
	if job.OwnerID != ownerID {
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return errprocess.Forbidden("upload belongs to another user")
	}
	if job.Status != domain.JobInitiated {
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeNoop).Inc()
		logger.Log.Debug("complete on a job past initiated, ignored",
			zap.String("storage_key", storageKey), zap.String("status", string(job.Status)))
		return nil
	}

	exists, err := u.store.Exists(ctx, u.uploadsBucket, storageKey)
	if err != nil {
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeError).Inc()
		return errprocess.Set(fmt.Sprintf("storageKey[%s] check object failed: %v", storageKey, err))
	}
	if !exists {
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return errprocess.NotFound("uploaded object not found")
	}

	moved, err := u.repo.Transition(ctx, storageKey, domain.JobInitiated, domain.JobUploaded)
	if err != nil {
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeError).Inc()
		return errprocess.Set(fmt.Sprintf("storageKey[%s] mark uploaded failed: %v", storageKey, err))
	}
	if !moved {
		// a concurrent complete got there first
		metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeNoop).Inc()
		return nil
	}

	metrics.UploadsCompleted.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.Log.Info("upload completed", zap.String("owner_id", ownerID), zap.String("storage_key", storageKey))
	return nil
}

// ListPending the caller's jobs, newest first
func (u *uploadUseCase) ListPending(ctx context.Context, ownerID string) ([]domain.PendingJob, error) {
	jobs, err := u.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("ownerID[%s] list pending jobs failed: %v", ownerID, err))
	}
	if jobs == nil {
		jobs = []domain.PendingJob{}
	}
	return jobs, nil
}
