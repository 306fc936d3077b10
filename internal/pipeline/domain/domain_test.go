package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestCanTransition(t *testing.T) {
	all := []JobStatus{JobInitiated, JobUploaded, JobProcessing, JobDone, JobFailed}
	allowed := map[[2]JobStatus]bool{
		{JobInitiated, JobUploaded}:  true,
		{JobUploaded, JobProcessing}: true,
		{JobProcessing, JobDone}:     true,
		{JobProcessing, JobFailed}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]JobStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(JobStatus("bogus"), JobUploaded))
}

func TestReclaimOnlyFromProcessing(t *testing.T) {
	assert.True(t, CanReclaim(JobProcessing))
	assert.False(t, CanReclaim(JobUploaded))
	assert.False(t, CanReclaim(JobDone))
	// reclaim is not a regular transition
	assert.False(t, CanTransition(JobProcessing, JobUploaded))
}

func TestTerminal(t *testing.T) {
	assert.True(t, JobDone.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
	assert.False(t, JobProcessing.IsTerminal())
	assert.True(t, JobInitiated.Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestBuildVideoFallbackChain(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		job      PendingJob
		req      CompleteJobReq
		wantT    string
		wantD    string
		wantV    Visibility
		duration int
	}{
		{
			name:  "worker override wins",
			job:   PendingJob{OwnerID: "u1", StorageKey: "u1/a.mp4", OriginalFilename: "holiday.MOV", Title: ptr("carried"), Description: ptr("carried d"), Visibility: ptr(VisibilityHidden)},
			req:   CompleteJobReq{Title: ptr("override"), Description: ptr("override d"), Visibility: ptr(VisibilityLinkOnly), Meta: ProbeMeta{DurationSec: ptr(125.6)}},
			wantT: "override", wantD: "override d", wantV: VisibilityLinkOnly, duration: 126,
		},
		{
			name:  "carried values",
			job:   PendingJob{OwnerID: "u1", StorageKey: "u1/a.mp4", OriginalFilename: "holiday.MOV", Title: ptr("carried"), Description: ptr("carried d"), Visibility: ptr(VisibilityHidden)},
			req:   CompleteJobReq{Meta: ProbeMeta{DurationSec: ptr(10.4)}},
			wantT: "carried", wantD: "carried d", wantV: VisibilityHidden, duration: 10,
		},
		{
			name:  "filename title",
			job:   PendingJob{OwnerID: "u1", StorageKey: "u1/a.mp4", OriginalFilename: "holiday.MOV"},
			wantT: "holiday", wantD: "", wantV: VisibilityPublic,
		},
		{
			name:  "defaults",
			job:   PendingJob{OwnerID: "u1", StorageKey: "u1/a.mp4"},
			wantT: DefaultTitle, wantD: "", wantV: VisibilityPublic,
		},
		{
			name:  "invalid override visibility falls through",
			job:   PendingJob{OwnerID: "u1", StorageKey: "u1/a.mp4", Visibility: ptr(VisibilityHidden)},
			req:   CompleteJobReq{Visibility: ptr(Visibility("everyone"))},
			wantT: DefaultTitle, wantV: VisibilityHidden,
		},
		{
			name:  "empty override is still an override",
			job:   PendingJob{OwnerID: "u1", StorageKey: "u1/a.mp4", Title: ptr("carried")},
			req:   CompleteJobReq{Title: ptr("")},
			wantT: "", wantV: VisibilityPublic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.FinalStorageKey = "videos/u1/1-x.mp4"
			v := BuildVideo("vid", &tt.job, tt.req, now)
			assert.Equal(t, "vid", v.ID)
			assert.Equal(t, "u1", v.OwnerID)
			assert.Equal(t, tt.wantT, v.Title)
			assert.Equal(t, tt.wantD, v.Description)
			assert.Equal(t, tt.wantV, v.Visibility)
			assert.Equal(t, tt.duration, v.DurationSeconds)
			assert.Equal(t, "videos/u1/1-x.mp4", v.StorageKey)
			assert.Equal(t, "u1/a.mp4", v.SourceKey)
			assert.Equal(t, now, v.CreatedDate)
		})
	}
}

func TestRoundDuration(t *testing.T) {
	assert.Equal(t, 0, RoundDuration(nil))
	assert.Equal(t, 126, RoundDuration(ptr(125.6)))
	assert.Equal(t, 125, RoundDuration(ptr(125.4)))
	assert.Equal(t, 1, RoundDuration(ptr(0.5)))
	assert.Equal(t, 0, RoundDuration(ptr(-3.0)))
}

func TestKeys(t *testing.T) {
	orig := newUUID
	defer func() { newUUID = orig }()
	newUUID = func() string { return "fixed" }

	assert.Equal(t, "u1/fixed.mov", NewUploadKey("u1", "Clip.MOV"))
	assert.Equal(t, "u1/fixed", NewUploadKey("u1", "noext"))
	assert.Equal(t, "videos/u1/1700000000000-fixed.mp4", NewFinalKey("u1", time.UnixMilli(1700000000000)))
}

func TestVideoAccess(t *testing.T) {
	owner := Caller{ID: "u1"}
	other := Caller{ID: "u2"}
	admin := Caller{ID: "u2", IsAdmin: true}

	hidden := &Video{OwnerID: "u1", Visibility: VisibilityHidden}
	assert.True(t, hidden.CanRead(owner))
	assert.True(t, hidden.CanRead(admin))
	assert.False(t, hidden.CanRead(other))
	assert.False(t, hidden.CanRead(Caller{}))

	linkOnly := &Video{OwnerID: "u1", Visibility: VisibilityLinkOnly}
	assert.True(t, linkOnly.CanRead(Caller{}))

	public := &Video{OwnerID: "u1", Visibility: VisibilityPublic}
	assert.True(t, public.CanRead(Caller{}))
	assert.False(t, public.CanModify(other))
	assert.True(t, public.CanModify(owner))
	assert.True(t, public.CanModify(admin))
	assert.False(t, (&Video{}).CanModify(Caller{}))
}

func TestReapReportAdd(t *testing.T) {
	total := ReapReport{Scanned: 2, Deleted: 1, Errors: 1}
	total.Add(ReapReport{Scanned: 3, Deleted: 3, ObjectsDeleted: 2})
	assert.Equal(t, ReapReport{Scanned: 5, Deleted: 4, ObjectsDeleted: 2, Errors: 1}, total)
}
