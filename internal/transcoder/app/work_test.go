package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pipelineapp "video_pipeline_service/internal/pipeline/app"
	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/logger"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	logger.SetNewNop()
	timeNow = func() time.Time { return fixedNow }
}

// MockJobSource Mock JobSource
type MockJobSource struct {
	mock.Mock
}

func (m *MockJobSource) NextJob() (*domain.JobDescriptor, error) {
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).(*domain.JobDescriptor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJobSource) Complete(req domain.CompleteJobReq) (*domain.CompleteJobRes, error) {
	args := m.Called(req)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.CompleteJobRes), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJobSource) Fail(storageKey, reason string) (*domain.FailJobRes, error) {
	args := m.Called(storageKey, reason)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.FailJobRes), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestWorker(t *testing.T) (*Worker, *MockJobSource, *pipelineapp.MockObjectStore, string) {
	t.Helper()
	scratch := t.TempDir()
	jobs := new(MockJobSource)
	store := new(pipelineapp.MockObjectStore)
	w := NewWorker(jobs, store, config.TranscodeWorker{
		ScratchDir:   scratch,
		PollInterval: 10 * time.Millisecond,
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		Storage:      config.StorageConfig{UploadsBucket: "uploads", VideosBucket: "videos"},
	})
	return w, jobs, store, scratch
}

// stubTools replace ffmpeg / ffprobe for the duration of the test
func stubTools(t *testing.T, transcode func(ctx context.Context, bin Binaries, in, out string) error, probe func(ctx context.Context, bin Binaries, path string) (domain.ProbeMeta, error)) {
	t.Helper()
	origT, origP := Transcode, Probe
	Transcode, Probe = transcode, probe
	t.Cleanup(func() { Transcode, Probe = origT, origP })
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("data"), 0644)
}

func downloadWrites(store *pipelineapp.MockObjectStore, key, dest string) {
	store.On("DownloadFile", mock.Anything, "uploads", key, dest).
		Run(func(args mock.Arguments) { _ = writeFile(args.String(3)) }).
		Return(nil)
}

func TestRunOnceNoJob(t *testing.T) {
	w, jobs, _, _ := newTestWorker(t)
	jobs.On("NextJob").Return(nil, nil)

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRunOnceFetchError(t *testing.T) {
	w, jobs, _, _ := newTestWorker(t)
	jobs.On("NextJob").Return(nil, errors.New("connection refused"))

	processed, err := w.RunOnce(context.Background())
	assert.Error(t, err)
	assert.False(t, processed)
}

func TestRunOnceSuccess(t *testing.T) {
	w, jobs, store, scratch := newTestWorker(t)
	input := filepath.Join(scratch, "abc.mov")
	output := filepath.Join(scratch, "abc.transcoded.mp4")

	d := 125.6
	stubTools(t,
		func(ctx context.Context, bin Binaries, in, out string) error {
			assert.Equal(t, "ffmpeg", bin.FFmpeg)
			assert.Equal(t, input, in)
			assert.Equal(t, output, out)
			return writeFile(out)
		},
		func(ctx context.Context, bin Binaries, path string) (domain.ProbeMeta, error) {
			return domain.ProbeMeta{DurationSec: &d}, nil
		},
	)

	jobs.On("NextJob").Return(&domain.JobDescriptor{StorageKey: "u1/abc.mov", OwnerID: "u1"}, nil)
	downloadWrites(store, "u1/abc.mov", input)

	isFinalKey := mock.MatchedBy(func(k string) bool {
		prefix := "videos/u1/" + "1740830400000-"
		return strings.HasPrefix(k, prefix) && strings.HasSuffix(k, ".mp4")
	})
	store.On("UploadFile", mock.Anything, "videos", isFinalKey, output, "video/mp4").Return(nil)
	jobs.On("Complete", mock.MatchedBy(func(req domain.CompleteJobReq) bool {
		return req.StorageKey == "u1/abc.mov" &&
			strings.HasPrefix(req.FinalStorageKey, "videos/u1/") &&
			req.Meta.DurationSec != nil && *req.Meta.DurationSec == 125.6
	})).Return(&domain.CompleteJobRes{OK: true, VideoID: "v-1"}, nil)

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	jobs.AssertExpectations(t)
	store.AssertExpectations(t)
	jobs.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything)
	assert.NoFileExists(t, input)
	assert.NoFileExists(t, output)
}

func TestRunOnceTranscodeFailureReportsFail(t *testing.T) {
	w, jobs, store, scratch := newTestWorker(t)
	input := filepath.Join(scratch, "abc.mov")

	stubTools(t,
		func(ctx context.Context, bin Binaries, in, out string) error {
			_ = writeFile(out)
			return errors.New("ffmpeg: exit status 1")
		},
		func(ctx context.Context, bin Binaries, path string) (domain.ProbeMeta, error) {
			t.Error("probe must not run after a failed transcode")
			return domain.ProbeMeta{}, nil
		},
	)

	jobs.On("NextJob").Return(&domain.JobDescriptor{StorageKey: "u1/abc.mov", OwnerID: "u1"}, nil)
	downloadWrites(store, "u1/abc.mov", input)
	jobs.On("Fail", "u1/abc.mov", "ffmpeg: exit status 1").Return(&domain.FailJobRes{OK: true}, nil)

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	jobs.AssertExpectations(t)
	store.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	jobs.AssertNotCalled(t, "Complete", mock.Anything)
	assert.NoFileExists(t, input)
	assert.NoFileExists(t, filepath.Join(scratch, "abc.transcoded.mp4"))
}

func TestRunOnceDownloadFailure(t *testing.T) {
	w, jobs, store, scratch := newTestWorker(t)

	jobs.On("NextJob").Return(&domain.JobDescriptor{StorageKey: "u1/gone.mp4", OwnerID: "u1"}, nil)
	store.On("DownloadFile", mock.Anything, "uploads", "u1/gone.mp4", filepath.Join(scratch, "gone.mp4")).
		Return(errors.New("NoSuchKey"))
	jobs.On("Fail", "u1/gone.mp4", mock.MatchedBy(func(reason string) bool {
		return strings.Contains(reason, "download raw") && strings.Contains(reason, "NoSuchKey")
	})).Return(&domain.FailJobRes{OK: true}, nil)

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	jobs.AssertExpectations(t)
}

func TestRunOnceCompleteRejectedReportsFail(t *testing.T) {
	w, jobs, store, scratch := newTestWorker(t)
	input := filepath.Join(scratch, "abc.mp4")

	stubTools(t,
		func(ctx context.Context, bin Binaries, in, out string) error { return writeFile(out) },
		func(ctx context.Context, bin Binaries, path string) (domain.ProbeMeta, error) {
			return domain.ProbeMeta{}, nil
		},
	)

	var uploadedKey string
	jobs.On("NextJob").Return(&domain.JobDescriptor{StorageKey: "u1/abc.mp4", OwnerID: "u1"}, nil)
	downloadWrites(store, "u1/abc.mp4", input)
	store.On("UploadFile", mock.Anything, "videos", mock.Anything, mock.Anything, "video/mp4").
		Run(func(args mock.Arguments) { uploadedKey = args.String(2) }).
		Return(nil)
	jobs.On("Complete", mock.Anything).Return(nil, &StatusError{Op: "jobs/complete", Code: 409}).Once()
	store.On("Delete", mock.Anything, "videos", mock.MatchedBy(func(k string) bool { return k == uploadedKey })).Return(nil).Once()
	jobs.On("Fail", "u1/abc.mp4", mock.Anything).Return(&domain.FailJobRes{OK: true}, nil)

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	jobs.AssertExpectations(t)
	store.AssertExpectations(t)
	assert.True(t, strings.HasPrefix(uploadedKey, "videos/u1/"))
}

func TestRunOnceCompleteRetriesTransportError(t *testing.T) {
	w, jobs, store, scratch := newTestWorker(t)
	input := filepath.Join(scratch, "abc.mp4")

	stubTools(t,
		func(ctx context.Context, bin Binaries, in, out string) error { return writeFile(out) },
		func(ctx context.Context, bin Binaries, path string) (domain.ProbeMeta, error) {
			return domain.ProbeMeta{}, nil
		},
	)

	jobs.On("NextJob").Return(&domain.JobDescriptor{StorageKey: "u1/abc.mp4", OwnerID: "u1"}, nil)
	downloadWrites(store, "u1/abc.mp4", input)
	store.On("UploadFile", mock.Anything, "videos", mock.Anything, mock.Anything, "video/mp4").Return(nil)
	jobs.On("Complete", mock.Anything).Return(nil, errors.New("connection reset")).Once()
	jobs.On("Complete", mock.Anything).Return(&domain.CompleteJobRes{OK: true, VideoID: "v-1"}, nil).Once()

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	jobs.AssertNumberOfCalls(t, "Complete", 2)
	jobs.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

// failingDownload job whose raw download errors, so RunOnce goes straight to the fail report
func failingDownload(jobs *MockJobSource, store *pipelineapp.MockObjectStore, scratch string) {
	jobs.On("NextJob").Return(&domain.JobDescriptor{StorageKey: "u1/a.mp4", OwnerID: "u1"}, nil)
	store.On("DownloadFile", mock.Anything, "uploads", "u1/a.mp4", filepath.Join(scratch, "a.mp4")).
		Return(errors.New("timeout"))
}

func TestRunOnceFailReportRetriesUntilAccepted(t *testing.T) {
	w, jobs, store, scratch := newTestWorker(t)
	failingDownload(jobs, store, scratch)
	jobs.On("Fail", "u1/a.mp4", mock.Anything).Return(nil, errors.New("connection reset")).Twice()
	jobs.On("Fail", "u1/a.mp4", mock.Anything).Return(&domain.FailJobRes{OK: true}, nil).Once()

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	jobs.AssertNumberOfCalls(t, "Fail", 3)
}

func TestRunOnceFailReportServerErrorRetried(t *testing.T) {
	w, jobs, store, scratch := newTestWorker(t)
	failingDownload(jobs, store, scratch)
	jobs.On("Fail", "u1/a.mp4", mock.Anything).Return(nil, &StatusError{Op: "jobs/fail", Code: 503}).Once()
	jobs.On("Fail", "u1/a.mp4", mock.Anything).Return(&domain.FailJobRes{OK: true}, nil).Once()

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	jobs.AssertNumberOfCalls(t, "Fail", 2)
}

func TestRunOnceFailReportRejectedNotRetried(t *testing.T) {
	for _, code := range []int{404, 409} {
		w, jobs, store, scratch := newTestWorker(t)
		failingDownload(jobs, store, scratch)
		jobs.On("Fail", "u1/a.mp4", mock.Anything).Return(nil, &StatusError{Op: "jobs/fail", Code: code})

		processed, err := w.RunOnce(context.Background())
		assert.NoError(t, err, "status %d", code)
		assert.True(t, processed)
		jobs.AssertNumberOfCalls(t, "Fail", 1)
	}
}

func TestRunOnceFailReportStopsOnCancel(t *testing.T) {
	w, jobs, store, scratch := newTestWorker(t)
	failingDownload(jobs, store, scratch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs.On("Fail", "u1/a.mp4", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, errors.New("connection reset"))

	processed, err := w.RunOnce(ctx)
	assert.True(t, processed)
	assert.ErrorIs(t, err, context.Canceled)
	jobs.AssertNumberOfCalls(t, "Fail", 1)
}

func TestRunRefusesLockedScratch(t *testing.T) {
	w, _, _, scratch := newTestWorker(t)

	other := flock.New(filepath.Join(scratch, lockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	err = w.Run(context.Background())
	assert.ErrorIs(t, err, ErrScratchLocked)
}

func TestRunStopsOnCancel(t *testing.T) {
	w, jobs, _, _ := newTestWorker(t)
	jobs.On("NextJob").Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
