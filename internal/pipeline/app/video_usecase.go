package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/internal/pipeline/repository"
	"video_pipeline_service/pkg/database"
	errprocess "video_pipeline_service/pkg/err"
	"video_pipeline_service/pkg/logger"

	"go.uber.org/zap"
)

// VideoUseCase read / update / delete finalized videos
type VideoUseCase interface {
	Get(ctx context.Context, id string, caller domain.Caller) (*domain.Video, error)
	StreamURL(ctx context.Context, id string, caller domain.Caller) (*domain.StreamURLRes, error)
	Update(ctx context.Context, id string, caller domain.Caller, req domain.UpdateVideoReq) (*domain.Video, error)
	Delete(ctx context.Context, id string, caller domain.Caller) error
}

type videoUseCase struct {
	repo         repository.VideoRepo
	store        database.ObjectStore
	videosBucket string
	urlTTL       time.Duration
	cache        database.RedisRepository[string] // nil when redis is not configured
}

// NewVideoUseCase cache may be nil
func NewVideoUseCase(repo repository.VideoRepo, store database.ObjectStore, videosBucket string, urlTTL time.Duration, cache database.RedisRepository[string]) VideoUseCase {
	return &videoUseCase{
		repo:         repo,
		store:        store,
		videosBucket: videosBucket,
		urlTTL:       urlTTL,
		cache:        cache,
	}
}

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

func (v *videoUseCase) load(ctx context.Context, id string) (*domain.Video, error) {
	video, err := v.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errprocess.NotFound("video not found")
	}
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("videoID[%s] 找不到影片: %v", id, err))
	}
	return video, nil
}

func (v *videoUseCase) readable(ctx context.Context, id string, caller domain.Caller) (*domain.Video, error) {
	video, err := v.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !video.CanRead(caller) {
		if caller.Anonymous() {
			return nil, errprocess.Unauthorized("login required")
		}
		return nil, errprocess.Forbidden("video is hidden")
	}
	return video, nil
}

func (v *videoUseCase) modifiable(ctx context.Context, id string, caller domain.Caller) (*domain.Video, error) {
	video, err := v.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !video.CanModify(caller) {
		return nil, errprocess.Forbidden("you do not own this video")
	}
	return video, nil
}

// Get visibility gated read
func (v *videoUseCase) Get(ctx context.Context, id string, caller domain.Caller) (*domain.Video, error) {
	return v.readable(ctx, id, caller)
}

// StreamURL presigned GET on the transcoded object, cached until a minute before it expires
func (v *videoUseCase) StreamURL(ctx context.Context, id string, caller domain.Caller) (*domain.StreamURLRes, error) {
	video, err := v.readable(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if absoluteURL.MatchString(video.StorageKey) {
		return &domain.StreamURLRes{URL: video.StorageKey}, nil
	}

	if v.cache != nil {
		if url, err := v.cache.Get(ctx, id); err == nil {
			return &domain.StreamURLRes{URL: url}, nil
		} else if !errors.Is(err, database.ErrCacheMiss) {
			logger.Log.Warn("stream url cache read failed", zap.String("video_id", id), zap.Error(err))
		}
	}

	url, err := v.store.PresignGetURL(ctx, v.videosBucket, video.StorageKey, v.urlTTL)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("videoID[%s] presign stream url failed: %v", id, err))
	}

	if ttl := v.urlTTL - time.Minute; v.cache != nil && ttl > 0 {
		if err := v.cache.Set(ctx, id, url, ttl); err != nil {
			logger.Log.Warn("stream url cache write failed", zap.String("video_id", id), zap.Error(err))
		}
	}
	return &domain.StreamURLRes{URL: url}, nil
}

// Update owner or admin, partial
func (v *videoUseCase) Update(ctx context.Context, id string, caller domain.Caller, req domain.UpdateVideoReq) (*domain.Video, error) {
	if req.Empty() {
		return nil, errprocess.Validation("nothing to update")
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, errprocess.Validation("title must not be empty")
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		return nil, errprocess.Validation("description must not be empty")
	}
	if req.Visibility != nil && !req.Visibility.Valid() {
		return nil, errprocess.Validation("visibility must be one of hidden, link-only, public")
	}

	if _, err := v.modifiable(ctx, id, caller); err != nil {
		return nil, err
	}

	updated, err := v.repo.Update(ctx, id, req)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errprocess.NotFound("video not found")
	}
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("videoID[%s] update failed: %v", id, err))
	}
	return updated, nil
}

// Delete owner or admin; the transcoded object and cached url go too, best effort
func (v *videoUseCase) Delete(ctx context.Context, id string, caller domain.Caller) error {
	video, err := v.modifiable(ctx, id, caller)
	if err != nil {
		return err
	}

	if err := v.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errprocess.NotFound("video not found")
		}
		return errprocess.Set(fmt.Sprintf("videoID[%s] delete failed: %v", id, err))
	}

	if !absoluteURL.MatchString(video.StorageKey) {
		if err := v.store.Delete(ctx, v.videosBucket, video.StorageKey); err != nil {
			logger.Log.Warn("delete video object failed", zap.String("video_id", id), zap.Error(err))
		}
	}
	if v.cache != nil {
		if err := v.cache.Del(ctx, id); err != nil {
			logger.Log.Warn("evict stream url failed", zap.String("video_id", id), zap.Error(err))
		}
	}
	logger.Log.Info("video deleted", zap.String("video_id", id), zap.String("by", caller.ID))
	return nil
}
