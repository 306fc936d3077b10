package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/internal/pipeline/repository"
	"video_pipeline_service/pkg/database"
	errprocess "video_pipeline_service/pkg/err"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"

	"go.uber.org/zap"
)

// DispatcherUseCase job feed for transcode workers
type DispatcherUseCase interface {
	NextJob(ctx context.Context) (*domain.JobDescriptor, error)
	CompleteJob(ctx context.Context, req domain.CompleteJobReq) (string, error)
	FailJob(ctx context.Context, req domain.FailJobReq) (string, error)
}

type dispatcherUseCase struct {
	repo          repository.PendingJobRepo
	store         database.ObjectStore
	uploadsBucket string
}

// NewDispatcherUseCase 建立一個新的 DispatcherUseCase
func NewDispatcherUseCase(repo repository.PendingJobRepo, store database.ObjectStore, uploadsBucket string) DispatcherUseCase {
	return &dispatcherUseCase{repo: repo, store: store, uploadsBucket: uploadsBucket}
}

// NextJob claim the oldest uploaded job, nil when the queue is empty
func (d *dispatcherUseCase) NextJob(ctx context.Context) (*domain.JobDescriptor, error) {
	job, err := d.repo.ClaimNext(ctx)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("claim next job failed: %v", err))
	}
	if job == nil {
		return nil, nil
	}

	metrics.JobsClaimed.Inc()
	logger.Log.Info("job claimed", zap.String("storage_key", job.StorageKey), zap.String("owner_id", job.OwnerID))
	return domain.NewJobDescriptor(job), nil
}

// CompleteJob finalize a processing job into a Video, repeat calls return the same video id
func (d *dispatcherUseCase) CompleteJob(ctx context.Context, req domain.CompleteJobReq) (string, error) {
	if strings.TrimSpace(req.StorageKey) == "" || strings.TrimSpace(req.FinalStorageKey) == "" {
		return "", errprocess.Validation("storageKey and finalStorageKey are required")
	}
	if req.Visibility != nil && !req.Visibility.Valid() {
		return "", errprocess.Validation("visibility must be one of hidden, link-only, public")
	}

	video, created, err := d.repo.CompleteJob(ctx, req.StorageKey, func(job *domain.PendingJob) *domain.Video {
		return domain.BuildVideo(domain.NewVideoID(), job, req, timeNow().UTC())
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "", errprocess.NotFound("job not found")
	case errors.Is(err, repository.ErrStatusConflict):
		return "", errprocess.Conflict("job is not processing")
	case err != nil:
		return "", errprocess.Set(fmt.Sprintf("storageKey[%s] complete job failed: %v", req.StorageKey, err))
	}

	if !created {
		logger.Log.Info("job already done, returning existing video",
			zap.String("storage_key", req.StorageKey), zap.String("video_id", video.ID))
		return video.ID, nil
	}

	metrics.JobsFinished.WithLabelValues(string(domain.JobDone)).Inc()
	logger.Log.Info("job done",
		zap.String("storage_key", req.StorageKey),
		zap.String("video_id", video.ID),
		zap.Int("duration_seconds", video.DurationSeconds),
	)
	d.deleteRaw(ctx, req.StorageKey)
	return video.ID, nil
}

// FailJob processing -> failed; already failed is a no-op
func (d *dispatcherUseCase) FailJob(ctx context.Context, req domain.FailJobReq) (string, error) {
	if strings.TrimSpace(req.StorageKey) == "" {
		return "", errprocess.Validation("storageKey is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "unknown error"
	}

	moved, err := d.repo.Fail(ctx, req.StorageKey, reason)
	if err != nil {
		return "", errprocess.Set(fmt.Sprintf("storageKey[%s] mark failed failed: %v", req.StorageKey, err))
	}
	if !moved {
		job, err := d.repo.GetByKey(ctx, req.StorageKey)
		if errors.Is(err, repository.ErrNotFound) {
			return "", errprocess.NotFound("job not found")
		}
		if err != nil {
			return "", errprocess.Set(fmt.Sprintf("storageKey[%s] get job failed: %v", req.StorageKey, err))
		}
		if job.Status == domain.JobFailed {
			return reason, nil
		}
		return "", errprocess.Conflict(fmt.Sprintf("job is %s", job.Status))
	}

	metrics.JobsFinished.WithLabelValues(string(domain.JobFailed)).Inc()
	logger.Log.Warn("job failed", zap.String("storage_key", req.StorageKey), zap.String("reason", reason))
	d.deleteRaw(ctx, req.StorageKey)
	return reason, nil
}

// deleteRaw best effort, failures are only logged
func (d *dispatcherUseCase) deleteRaw(ctx context.Context, storageKey string) {
	if err := d.store.Delete(ctx, d.uploadsBucket, storageKey); err != nil {
		logger.Log.Warn("delete raw object failed", zap.String("storage_key", storageKey), zap.Error(err))
	}
}
