package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video_pipeline_service/internal/pipeline/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingJobRepo definition pending job store, also the transcode queue
type PendingJobRepo interface {
	AutoMigrate() error
	Create(ctx context.Context, job *domain.PendingJob) error
	GetByKey(ctx context.Context, storageKey string) (*domain.PendingJob, error)
	CountByOwnerStatus(ctx context.Context, ownerID string, status domain.JobStatus) (int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.PendingJob, error)
	Transition(ctx context.Context, storageKey string, from, to domain.JobStatus) (bool, error)
	ClaimNext(ctx context.Context) (*domain.PendingJob, error)
	Fail(ctx context.Context, storageKey, reason string) (bool, error)
	CompleteJob(ctx context.Context, storageKey string, build func(*domain.PendingJob) *domain.Video) (*domain.Video, bool, error)
	FindStale(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PendingJob, error)
	FindFinished(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.PendingJob, error)
	DeleteIfStatus(ctx context.Context, id uint, status domain.JobStatus) (bool, error)
	ReclaimStuck(ctx context.Context, claimedBefore time.Time) (int64, error)
}

type pendingJobRepo struct {
	db *gorm.DB
}

// NewPendingJobRepo create PendingJobRepo
func NewPendingJobRepo(db *gorm.DB) PendingJobRepo {
	return &pendingJobRepo{db: db}
}

// AutoMigrate pending_jobs and videos, the completion transaction writes both
func (r *pendingJobRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.PendingJob{}, &domain.Video{})
}

func (r *pendingJobRepo) Create(ctx context.Context, job *domain.PendingJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *pendingJobRepo) GetByKey(ctx context.Context, storageKey string) (*domain.PendingJob, error) {
	var job domain.PendingJob
	err := r.db.WithContext(ctx).Where("storage_key = ?", storageKey).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *pendingJobRepo) CountByOwnerStatus(ctx context.Context, ownerID string, status domain.JobStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.PendingJob{}).
		Where("owner_id = ? AND status = ?", ownerID, status).
		Count(&n).Error
	return n, err
}

// ListByOwner newest first
func (r *pendingJobRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.PendingJob, error) {
	var jobs []domain.PendingJob
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&jobs).Error
	return jobs, err
}

// Transition conditional UPDATE ... WHERE status = from, false when the row was not in from
func (r *pendingJobRepo) Transition(ctx context.Context, storageKey string, from, to domain.JobStatus) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrStatusConflict, from, to)
	}
	res := r.db.WithContext(ctx).Model(&domain.PendingJob{}).
		Where("storage_key = ? AND status = ?", storageKey, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// claimSQL one statement: pick the oldest uploaded row nobody else has locked and flip it
const claimSQL = `
UPDATE pending_jobs
SET status = 'processing', claimed_at = now(), updated_at = now()
WHERE id = (
	SELECT id FROM pending_jobs
	WHERE status = 'uploaded'
	ORDER BY created_at, id
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
AND status = 'uploaded'
RETURNING *`

// ClaimNext nil, nil when the queue is empty
func (r *pendingJobRepo) ClaimNext(ctx context.Context) (*domain.PendingJob, error) {
	var jobs []domain.PendingJob
	if err := r.db.WithContext(ctx).Raw(claimSQL).Scan(&jobs).Error; err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// Fail processing -> failed with reason, false when the row was not processing
func (r *pendingJobRepo) Fail(ctx context.Context, storageKey, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.PendingJob{}).
		Where("storage_key = ? AND status = ?", storageKey, domain.JobProcessing).
		Updates(map[string]interface{}{"status": domain.JobFailed, "fail_reason": reason})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompleteJob lock the job, insert the Video built from it and mark it done, all in one transaction.
// A job already done returns its existing Video with created=false.
func (r *pendingJobRepo) CompleteJob(ctx context.Context, storageKey string, build func(*domain.PendingJob) *domain.Video) (*domain.Video, bool, error) {
	var video *domain.Video
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job domain.PendingJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("storage_key = ?", storageKey).
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if job.Status == domain.JobDone {
			var existing domain.Video
			if err := tx.Where("source_key = ?", storageKey).First(&existing).Error; err != nil {
				return fmt.Errorf("job done but video missing: %w", err)
			}
			video = &existing
			return nil
		}
		if !domain.CanTransition(job.Status, domain.JobDone) {
			return fmt.Errorf("%w: job is %s", ErrStatusConflict, job.Status)
		}

		v := build(&job)
		if err := tx.Create(v).Error; err != nil {
			return fmt.Errorf("insert video: %w", err)
		}
		res := tx.Model(&domain.PendingJob{}).
			Where("id = ? AND status = ?", job.ID, domain.JobProcessing).
			Update("status", domain.JobDone)
		if res.Error != nil {
			return fmt.Errorf("mark job done: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: job left processing during completion", ErrStatusConflict)
		}
		video = v
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return video, created, nil
}

// FindStale non-terminal jobs created before the cutoff, oldest first
func (r *pendingJobRepo) FindStale(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PendingJob, error) {
	var jobs []domain.PendingJob
	err := r.db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", createdBefore, domain.NonTerminalStatuses).
		Order("created_at, id").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// FindFinished done/failed jobs last touched before the cutoff
func (r *pendingJobRepo) FindFinished(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.PendingJob, error) {
	var jobs []domain.PendingJob
	err := r.db.WithContext(ctx).
		Where("updated_at < ? AND status IN ?", updatedBefore, domain.TerminalStatuses).
		Order("updated_at, id").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// DeleteIfStatus delete the row unless it moved on since it was read
func (r *pendingJobRepo) DeleteIfStatus(ctx context.Context, id uint, status domain.JobStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, status).
		Delete(&domain.PendingJob{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReclaimStuck processing jobs claimed before the cutoff go back to uploaded
func (r *pendingJobRepo) ReclaimStuck(ctx context.Context, claimedBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.PendingJob{}).
		Where("status = ? AND claimed_at < ?", domain.JobProcessing, claimedBefore).
		Updates(map[string]interface{}{"status": domain.JobUploaded, "claimed_at": nil})
	return res.RowsAffected, res.Error
}
