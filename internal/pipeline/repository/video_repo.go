package repository

import (
	"context"
	"errors"

	"video_pipeline_service/internal/pipeline/domain"

	"gorm.io/gorm"
)

// VideoRepo definition get video info
type VideoRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Video, error)
	GetBySourceKey(ctx context.Context, sourceKey string) (*domain.Video, error)
	Update(ctx context.Context, id string, req domain.UpdateVideoReq) (*domain.Video, error)
	Delete(ctx context.Context, id string) error
}

type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepo create VideoRepo
func NewVideoRepo(db *gorm.DB) VideoRepo {
	return &videoRepo{db: db}
}

func (r *videoRepo) first(ctx context.Context, query string, arg interface{}) (*domain.Video, error) {
	var v domain.Video
	err := r.db.WithContext(ctx).Where(query, arg).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByID get Video by id
func (r *videoRepo) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	return r.first(ctx, "id = ?", id)
}

// GetBySourceKey the video a pending job was finalized into
func (r *videoRepo) GetBySourceKey(ctx context.Context, sourceKey string) (*domain.Video, error) {
	return r.first(ctx, "source_key = ?", sourceKey)
}

// Update 只更新有帶值的欄位
func (r *videoRepo) Update(ctx context.Context, id string, req domain.UpdateVideoReq) (*domain.Video, error) {
	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Visibility != nil {
		fields["visibility"] = *req.Visibility
	}

	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&domain.Video{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.GetByID(ctx, id)
}

func (r *videoRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Video{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
