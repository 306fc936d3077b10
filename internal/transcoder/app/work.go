package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// ErrScratchLocked another worker already owns the scratch directory
var ErrScratchLocked = errors.New("scratch directory is locked by another worker")

const (
	lockFileName = ".worker.lock"
	videoMIME    = "video/mp4"
)

// 這個變數會在測試時被覆蓋
var timeNow = time.Now

// Worker 單執行緒轉碼 worker，一次處理一個 job
type Worker struct {
	jobs          JobSource
	store         database.ObjectStore
	uploadsBucket string
	videosBucket  string
	bin           Binaries
	scratchDir    string
	pollInterval  time.Duration
}

// NewWorker 建構 Worker 實例
func NewWorker(jobs JobSource, store database.ObjectStore, cfg config.TranscodeWorker) *Worker {
	return &Worker{
		jobs:          jobs,
		store:         store,
		uploadsBucket: cfg.Storage.UploadsBucket,
		videosBucket:  cfg.Storage.VideosBucket,
		bin:           Binaries{FFmpeg: cfg.FFmpegPath, FFprobe: cfg.FFprobePath},
		scratchDir:    cfg.ScratchDir,
		pollInterval:  cfg.PollInterval,
	}
}

// Run poll until ctx is cancelled. Transport errors back off for PollInterval and never end the loop.
func (w *Worker) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.scratchDir, 0755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	lock := flock.New(filepath.Join(w.scratchDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock scratch dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrScratchLocked, w.scratchDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Log.Warn("unlock scratch dir failed", zap.Error(err))
		}
	}()

	logger.Log.Info("transcode worker started", zap.String("scratch", w.scratchDir), zap.Duration("poll", w.pollInterval))
	for {
		if ctx.Err() != nil {
			logger.Log.Info("transcode worker stopping")
			return nil
		}

		processed, err := w.RunOnce(ctx)
		switch {
		case err != nil:
			logger.Log.Warn("worker loop error, backing off", zap.Error(err))
			sleep(ctx, w.pollInterval)
		case !processed:
			sleep(ctx, w.pollInterval)
		}
	}
}

// RunOnce claim and process at most one job. processed is false when the queue was empty.
// A job that fails is reported to the dispatcher, retrying until it answers or ctx is cancelled;
// the returned error is only about talking to it.
func (w *Worker) RunOnce(ctx context.Context) (processed bool, err error) {
	job, err := w.jobs.NextJob()
	if err != nil {
		return false, fmt.Errorf("fetch next job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	logger.Log.Info("processing job", zap.String("storageKey", job.StorageKey), zap.String("owner", job.OwnerID))

	if perr := w.process(ctx, job); perr != nil {
		metrics.WorkerJobs.WithLabelValues(metrics.OutcomeError).Inc()
		logger.Log.Error("job processing error", zap.String("storageKey", job.StorageKey), zap.Error(perr))
		err := w.report(ctx, "jobs/fail", job.StorageKey, func() error {
			_, err := w.jobs.Fail(job.StorageKey, perr.Error())
			return err
		})
		var se *StatusError
		switch {
		case err == nil:
		case errors.As(err, &se):
			// 404 / 409: job 不存在或已離開 processing
			logger.Log.Warn("dispatcher rejected fail report", zap.String("storageKey", job.StorageKey), zap.Int("status", se.Code))
		default:
			return true, fmt.Errorf("report fail for [%s]: %w", job.StorageKey, err)
		}
		return true, nil
	}

	metrics.WorkerJobs.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.Log.Info("finished job", zap.String("storageKey", job.StorageKey))
	return true, nil
}

// process 負責執行轉碼工作：
// 1. 從 object storage 下載原始影片檔
// 2. 使用 FFmpeg 轉碼成 mp4
// 3. ffprobe 讀取 meta
// 4. 上傳到 videos bucket
// 5. 回報 dispatcher
// 暫存檔案不論成功與否都會清理
func (w *Worker) process(parent context.Context, job *domain.JobDescriptor) error {
	// 進行中的轉碼不因關閉訊號中斷
	ctx := context.WithoutCancel(parent)
	base := filepath.Base(job.StorageKey)
	if base == "." || base == "/" {
		base = "input.bin"
	}
	inputPath := filepath.Join(w.scratchDir, base)
	outputPath := TranscodedPath(inputPath)
	defer removeScratch(inputPath)
	defer removeScratch(outputPath)

	// 1. 下載
	err := stage("download", func() error {
		return w.store.DownloadFile(ctx, w.uploadsBucket, job.StorageKey, inputPath)
	})
	if err != nil {
		return fmt.Errorf("download raw: %w", err)
	}
	logSize("downloaded", "in", inputPath)

	// 2. 轉碼
	if err := stage("transcode", func() error { return Transcode(ctx, w.bin, inputPath, outputPath) }); err != nil {
		return err
	}
	logSize("transcoded", "", outputPath)

	// 3. probe
	var meta domain.ProbeMeta
	err = stage("probe", func() error {
		var perr error
		meta, perr = Probe(ctx, w.bin, outputPath)
		return perr
	})
	if err != nil {
		return err
	}

	// 4. 上傳
	finalKey := domain.NewFinalKey(job.OwnerID, timeNow())
	err = stage("upload", func() error {
		return w.store.UploadFile(ctx, w.videosBucket, finalKey, outputPath, videoMIME)
	})
	if err != nil {
		return fmt.Errorf("upload final: %w", err)
	}
	logSize("uploaded", "out", outputPath)

	// 5. 回報
	var res *domain.CompleteJobRes
	err = w.report(parent, "jobs/complete", job.StorageKey, func() error {
		var cerr error
		res, cerr = w.jobs.Complete(domain.CompleteJobReq{
			StorageKey:      job.StorageKey,
			FinalStorageKey: finalKey,
			Meta:            meta,
		})
		return cerr
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			// dispatcher 明確拒絕，上傳的成品不會被任何 video 引用
			w.discardFinal(ctx, finalKey)
		}
		return fmt.Errorf("complete job: %w", err)
	}
	logger.Log.Info("job completed", zap.String("storageKey", job.StorageKey), zap.String("videoId", res.VideoID), zap.String("finalKey", finalKey))
	return nil
}

// report call the dispatcher until it answers.
// Transport errors and 5xx back off for pollInterval; a 4xx or a cancelled ctx ends the retry.
func (w *Worker) report(ctx context.Context, op, storageKey string, call func() error) error {
	for attempt := 1; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && se.Permanent() {
			return err
		}
		logger.Log.Warn("report to dispatcher failed, retrying",
			zap.String("op", op),
			zap.String("storageKey", storageKey),
			zap.Int("attempt", attempt),
			zap.Error(err))
		sleep(ctx, w.pollInterval)
		if ctx.Err() != nil {
			return fmt.Errorf("%w, last error: %v", ctx.Err(), err)
		}
	}
}

// discardFinal best effort, failures are only logged
func (w *Worker) discardFinal(ctx context.Context, finalKey string) {
	if err := w.store.Delete(ctx, w.videosBucket, finalKey); err != nil {
		logger.Log.Warn("delete rejected final object failed", zap.String("finalKey", finalKey), zap.Error(err))
		return
	}
	logger.Log.Info("deleted rejected final object", zap.String("finalKey", finalKey))
}

func stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.WorkerStageSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

// logSize direction empty means the size is only logged
func logSize(msg, direction, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if direction != "" {
		metrics.WorkerBytes.WithLabelValues(direction).Add(float64(info.Size()))
	}
	logger.Log.Info(msg, zap.String("file", path), zap.String("size", humanize.Bytes(uint64(info.Size()))))
}

func removeScratch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn("remove scratch file failed", zap.String("file", path), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
