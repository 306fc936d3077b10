package repository

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	testtool "video_pipeline_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	testDB   *gorm.DB
	jobRepo  PendingJobRepo
	videoRep VideoRepo
)

// **TestMain - 初始化測試環境**
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Println("skipping repository integration tests in -short mode")
		os.Exit(0)
	}
	logger.SetNewNop()

	ctx := context.Background()
	container, dsn, err := testtool.PostgresContainer(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to start PostgreSQL: %v", err)
	}

	testDB, err = database.NewPGConnection(database.Connection{ConnectStr: dsn, RetryCount: 5, RetryInterval: 1})
	if err != nil {
		log.Fatalf("❌ Failed to connect PostgreSQL: %v", err)
	}
	jobRepo = NewPendingJobRepo(testDB)
	videoRep = NewVideoRepo(testDB)
	if err := jobRepo.AutoMigrate(); err != nil {
		log.Fatalf("❌ Failed to migrate: %v", err)
	}

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.Exec("TRUNCATE pending_jobs, videos RESTART IDENTITY").Error)
}

func seedJob(t *testing.T, owner, key string, status domain.JobStatus, createdAt time.Time) *domain.PendingJob {
	t.Helper()
	job := &domain.PendingJob{
		OwnerID:          owner,
		StorageKey:       key,
		OriginalFilename: "clip.mp4",
		Status:           status,
		CreatedAt:        createdAt,
		ExpiresAt:        createdAt.Add(30 * time.Minute),
	}
	require.NoError(t, jobRepo.Create(context.Background(), job))
	return job
}

func buildVideo(id string) func(*domain.PendingJob) *domain.Video {
	return func(j *domain.PendingJob) *domain.Video {
		dur := 125.6
		return domain.BuildVideo(id, j, domain.CompleteJobReq{
			StorageKey:      j.StorageKey,
			FinalStorageKey: "videos/" + j.OwnerID + "/final.mp4",
			Meta:            domain.ProbeMeta{DurationSec: &dur},
		}, time.Now())
	}
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	resetTables(t)
	seedJob(t, "u1", "u1/only.mp4", domain.JobUploaded, time.Now())

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan *domain.PendingJob, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := jobRepo.ClaimNext(context.Background())
			if err != nil {
				errs <- err
				return
			}
			results <- job
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	winners := 0
	for job := range results {
		if job != nil {
			winners++
			assert.Equal(t, domain.JobProcessing, job.Status)
			assert.NotNil(t, job.ClaimedAt)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestClaimIsFIFO(t *testing.T) {
	resetTables(t)
	now := time.Now()
	seedJob(t, "u1", "u1/newer.mp4", domain.JobUploaded, now.Add(-time.Minute))
	seedJob(t, "u1", "u1/older.mp4", domain.JobUploaded, now.Add(-time.Hour))
	seedJob(t, "u1", "u1/initiated.mp4", domain.JobInitiated, now.Add(-2*time.Hour))

	ctx := context.Background()
	first, err := jobRepo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "u1/older.mp4", first.StorageKey)

	second, err := jobRepo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "u1/newer.mp4", second.StorageKey)

	none, err := jobRepo.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTransitionIsConditional(t *testing.T) {
	resetTables(t)
	seedJob(t, "u1", "u1/a.mp4", domain.JobInitiated, time.Now())
	ctx := context.Background()

	ok, err := jobRepo.Transition(ctx, "u1/a.mp4", domain.JobInitiated, domain.JobUploaded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = jobRepo.Transition(ctx, "u1/a.mp4", domain.JobInitiated, domain.JobUploaded)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = jobRepo.Transition(ctx, "u1/a.mp4", domain.JobUploaded, domain.JobDone)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestCompleteJobCreatesVideoOnce(t *testing.T) {
	resetTables(t)
	seedJob(t, "u1", "u1/a.mp4", domain.JobProcessing, time.Now())
	ctx := context.Background()

	video, created, err := jobRepo.CompleteJob(ctx, "u1/a.mp4", buildVideo("11111111-1111-1111-1111-111111111111"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 126, video.DurationSeconds)
	assert.Equal(t, "clip", video.Title)

	job, err := jobRepo.GetByKey(ctx, "u1/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, job.Status)

	again, created, err := jobRepo.CompleteJob(ctx, "u1/a.mp4", buildVideo("22222222-2222-2222-2222-222222222222"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, video.ID, again.ID)

	var count int64
	require.NoError(t, testDB.Model(&domain.Video{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCompleteAfterFailConflicts(t *testing.T) {
	resetTables(t)
	seedJob(t, "u1", "u1/a.mp4", domain.JobProcessing, time.Now())
	ctx := context.Background()

	ok, err := jobRepo.Fail(ctx, "u1/a.mp4", "ffmpeg exploded")
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = jobRepo.CompleteJob(ctx, "u1/a.mp4", buildVideo("33333333-3333-3333-3333-333333333333"))
	assert.ErrorIs(t, err, ErrStatusConflict)

	job, err := jobRepo.GetByKey(ctx, "u1/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, "ffmpeg exploded", job.FailReason)

	_, err = videoRep.GetBySourceKey(ctx, "u1/a.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteJobUnknownKey(t *testing.T) {
	resetTables(t)
	_, _, err := jobRepo.CompleteJob(context.Background(), "nope", buildVideo("44444444-4444-4444-4444-444444444444"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindStaleAndDelete(t *testing.T) {
	resetTables(t)
	now := time.Now()
	old := seedJob(t, "u1", "u1/old.mp4", domain.JobUploaded, now.Add(-25*time.Hour))
	seedJob(t, "u1", "u1/fresh.mp4", domain.JobUploaded, now.Add(-time.Hour))
	seedJob(t, "u1", "u1/old-done.mp4", domain.JobDone, now.Add(-48*time.Hour))
	ctx := context.Background()

	stale, err := jobRepo.FindStale(ctx, now.Add(-24*time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)

	ok, err := jobRepo.DeleteIfStatus(ctx, old.ID, domain.JobProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = jobRepo.DeleteIfStatus(ctx, old.ID, domain.JobUploaded)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = jobRepo.GetByKey(ctx, "u1/old.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReclaimStuck(t *testing.T) {
	resetTables(t)
	seedJob(t, "u1", "u1/stuck.mp4", domain.JobUploaded, time.Now())
	ctx := context.Background()

	claimed, err := jobRepo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	n, err := jobRepo.ReclaimStuck(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = jobRepo.ReclaimStuck(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err := jobRepo.GetByKey(ctx, "u1/stuck.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.JobUploaded, job.Status)
	assert.Nil(t, job.ClaimedAt)
}

func TestCountAndList(t *testing.T) {
	resetTables(t)
	now := time.Now()
	seedJob(t, "u1", "u1/a.mp4", domain.JobInitiated, now.Add(-2*time.Minute))
	seedJob(t, "u1", "u1/b.mp4", domain.JobInitiated, now.Add(-time.Minute))
	seedJob(t, "u1", "u1/c.mp4", domain.JobUploaded, now)
	seedJob(t, "u2", "u2/a.mp4", domain.JobInitiated, now)
	ctx := context.Background()

	n, err := jobRepo.CountByOwnerStatus(ctx, "u1", domain.JobInitiated)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	jobs, err := jobRepo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "u1/c.mp4", jobs[0].StorageKey)
}

func TestVideoUpdateAndDelete(t *testing.T) {
	resetTables(t)
	seedJob(t, "u1", "u1/a.mp4", domain.JobProcessing, time.Now())
	ctx := context.Background()

	video, _, err := jobRepo.CompleteJob(ctx, "u1/a.mp4", buildVideo("55555555-5555-5555-5555-555555555555"))
	require.NoError(t, err)

	title := "renamed"
	vis := domain.VisibilityHidden
	updated, err := videoRep.Update(ctx, video.ID, domain.UpdateVideoReq{Title: &title, Visibility: &vis})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, domain.VisibilityHidden, updated.Visibility)

	require.NoError(t, videoRep.Delete(ctx, video.ID))
	assert.ErrorIs(t, videoRep.Delete(ctx, video.ID), ErrNotFound)
	_, err = videoRep.GetByID(ctx, video.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
