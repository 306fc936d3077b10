package app

import (
	"context"
	"errors"
	"fmt"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/internal/pipeline/repository"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"

	"go.uber.org/zap"
)

// ReaperLockKey advisory lock id shared by every maintenance run
const ReaperLockKey int64 = 0x7669646561706970 // "videapip"

const (
	sweepStale   = "stale"
	sweepReclaim = "reclaim"
	sweepPurge   = "purge"
)

// 測試時會被覆蓋
var reapBatchSize = 500

// ErrReaperBusy another process holds the maintenance lock
var ErrReaperBusy = errors.New("another maintenance run holds the lock")

// Locker session level mutual exclusion across processes
type Locker interface {
	TryLock(ctx context.Context, key int64) (release func(), ok bool, err error)
}

// Reaper stale job cleanup
type Reaper struct {
	repo          repository.PendingJobRepo
	store         database.ObjectStore
	uploadsBucket string
	cfg           config.ReaperConfig
	locker        Locker
}

// NewReaper locker may be nil, runs are then not serialized
func NewReaper(repo repository.PendingJobRepo, store database.ObjectStore, uploadsBucket string, cfg config.ReaperConfig, locker Locker) *Reaper {
	return &Reaper{
		repo:          repo,
		store:         store,
		uploadsBucket: uploadsBucket,
		cfg:           cfg,
		locker:        locker,
	}
}

func (r *Reaper) withLock(ctx context.Context, fn func() error) error {
	if r.locker == nil {
		return fn()
	}
	release, ok, err := r.locker.TryLock(ctx, ReaperLockKey)
	if err != nil {
		return fmt.Errorf("take maintenance lock: %w", err)
	}
	if !ok {
		return ErrReaperBusy
	}
	defer release()
	return fn()
}

// Sweep delete non-terminal jobs older than StaleAfter together with their raw objects.
// Items fail independently; the report counts them. Runs batch after batch until none are left.
func (r *Reaper) Sweep(ctx context.Context) (domain.ReapReport, error) {
	var report domain.ReapReport
	err := r.withLock(ctx, func() error {
		cutoff := timeNow().Add(-r.cfg.StaleAfter)
		var err error
		report, err = r.reapAll(ctx, sweepStale, func(limit int) ([]domain.PendingJob, error) {
			return r.repo.FindStale(ctx, cutoff, limit)
		})
		if err != nil {
			return fmt.Errorf("find stale jobs: %w", err)
		}
		return nil
	})
	return report, err
}

// PurgeTerminal delete done / failed rows older than TerminalRetention
func (r *Reaper) PurgeTerminal(ctx context.Context) (domain.ReapReport, error) {
	var report domain.ReapReport
	err := r.withLock(ctx, func() error {
		cutoff := timeNow().Add(-r.cfg.TerminalRetention)
		var err error
		report, err = r.reapAll(ctx, sweepPurge, func(limit int) ([]domain.PendingJob, error) {
			return r.repo.FindFinished(ctx, cutoff, limit)
		})
		if err != nil {
			return fmt.Errorf("find finished jobs: %w", err)
		}
		return nil
	})
	return report, err
}

// reapAll page until find returns a short batch.
// A full batch where no row could be deleted ends the run, the next one would read the same rows.
func (r *Reaper) reapAll(ctx context.Context, sweep string, find func(limit int) ([]domain.PendingJob, error)) (domain.ReapReport, error) {
	var total domain.ReapReport
	for {
		jobs, err := find(reapBatchSize)
		if err != nil {
			return total, err
		}
		batch := r.reap(ctx, sweep, jobs)
		total.Add(batch)
		if len(jobs) < reapBatchSize {
			return total, nil
		}
		if batch.Deleted == 0 {
			logger.Log.Warn("reap stopped with rows left, a full batch deleted nothing",
				zap.String("sweep", sweep),
				zap.Int("batch_size", reapBatchSize),
				zap.Int("errors", total.Errors),
			)
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

// ReclaimStuck put processing jobs whose worker went silent back in the queue
func (r *Reaper) ReclaimStuck(ctx context.Context) (int64, error) {
	var n int64
	err := r.withLock(ctx, func() error {
		var err error
		n, err = r.repo.ReclaimStuck(ctx, timeNow().Add(-r.cfg.ReclaimAfter))
		if err != nil {
			metrics.ReaperItems.WithLabelValues(sweepReclaim, metrics.OutcomeError).Inc()
			return fmt.Errorf("reclaim stuck jobs: %w", err)
		}
		metrics.ReaperItems.WithLabelValues(sweepReclaim, metrics.OutcomeOK).Add(float64(n))
		if n > 0 {
			logger.Log.Warn("stuck jobs returned to queue", zap.Int64("count", n))
		}
		return nil
	})
	return n, err
}

func (r *Reaper) reap(ctx context.Context, sweep string, jobs []domain.PendingJob) domain.ReapReport {
	report := domain.ReapReport{Scanned: len(jobs)}

	for _, job := range jobs {
		rowDeleted, objectDeleted, err := r.reapOne(ctx, job)
		if rowDeleted {
			report.Deleted++
		}
		if objectDeleted {
			report.ObjectsDeleted++
		}
		if err != nil {
			report.Errors++
			metrics.ReaperItems.WithLabelValues(sweep, metrics.OutcomeError).Inc()
			logger.Log.Error("reap job failed",
				zap.String("sweep", sweep),
				zap.String("storage_key", job.StorageKey),
				zap.String("status", string(job.Status)),
				zap.Bool("row_deleted", rowDeleted),
				zap.Error(err),
			)
			continue
		}
		metrics.ReaperItems.WithLabelValues(sweep, metrics.OutcomeOK).Inc()
	}

	logger.Log.Info("reap batch finished",
		zap.String("sweep", sweep),
		zap.Int("scanned", report.Scanned),
		zap.Int("deleted", report.Deleted),
		zap.Int("objects_deleted", report.ObjectsDeleted),
		zap.Int("errors", report.Errors),
	)
	return report
}

// reapOne row first, conditional on the status it was read with, then the object.
// A row claimed in between is left alone together with its input.
// An object that fails to delete after its row is gone stays behind as an orphan and is counted as an error.
func (r *Reaper) reapOne(ctx context.Context, job domain.PendingJob) (rowDeleted, objectDeleted bool, err error) {
	rowDeleted, err = r.repo.DeleteIfStatus(ctx, job.ID, job.Status)
	if err != nil {
		return false, false, fmt.Errorf("delete row: %w", err)
	}
	if !rowDeleted {
		return false, false, fmt.Errorf("row moved on from %s", job.Status)
	}

	exists, err := r.store.Exists(ctx, r.uploadsBucket, job.StorageKey)
	if err != nil {
		return true, false, fmt.Errorf("check object: %w", err)
	}
	if !exists {
		return true, false, nil
	}
	if err := r.store.Delete(ctx, r.uploadsBucket, job.StorageKey); err != nil {
		return true, false, fmt.Errorf("delete object: %w", err)
	}
	return true, true, nil
}
