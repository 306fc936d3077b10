package domain

import (
	"time"

	"video_pipeline_service/pkg/database"
)

// InitiateReq usecase initiate upload request
type InitiateReq struct {
	Filename    string      `json:"filename"`
	ContentType string      `json:"contentType,omitempty"`
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}

// InitiateRes usecase initiate upload response
type InitiateRes struct {
	StorageKey string                     `json:"storageKey"`
	Upload     *database.UploadCredential `json:"upload"`
	ExpiresAt  time.Time                  `json:"expiresAt"`
}

// CompleteUploadReq client notification that the upload finished
type CompleteUploadReq struct {
	StorageKey string `json:"storageKey"`
}

// JobDescriptor what a worker receives from jobs/next
type JobDescriptor struct {
	StorageKey  string      `json:"storageKey"`
	OwnerID     string      `json:"ownerId"`
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}

// NewJobDescriptor from a claimed job
func NewJobDescriptor(j *PendingJob) *JobDescriptor {
	return &JobDescriptor{
		StorageKey:  j.StorageKey,
		OwnerID:     j.OwnerID,
		Title:       j.Title,
		Description: j.Description,
		Visibility:  j.Visibility,
	}
}

// ProbeMeta media facts from ffprobe, every field optional
type ProbeMeta struct {
	DurationSec *float64 `json:"durationSec,omitempty"`
	Width       *int     `json:"width,omitempty"`
	Height      *int     `json:"height,omitempty"`
}

// CompleteJobReq worker report of a successful transcode
type CompleteJobReq struct {
	StorageKey      string      `json:"storageKey"`
	FinalStorageKey string      `json:"finalStorageKey"`
	Meta            ProbeMeta   `json:"meta"`
	Title           *string     `json:"title,omitempty"`
	Description     *string     `json:"description,omitempty"`
	Visibility      *Visibility `json:"visibility,omitempty"`
}

// CompleteJobRes jobs/complete response
type CompleteJobRes struct {
	OK      bool   `json:"ok"`
	VideoID string `json:"videoId"`
}

// FailJobReq worker report of a failed job
type FailJobReq struct {
	StorageKey string `json:"storageKey"`
	Reason     string `json:"reason"`
}

// FailJobRes jobs/fail response
type FailJobRes struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

// ReapReport counts from one maintenance sweep
type ReapReport struct {
	Scanned        int `json:"scanned"`
	Deleted        int `json:"deleted"`
	ObjectsDeleted int `json:"objectsDeleted"`
	Errors         int `json:"errors"`
}

// Add accumulate another batch
func (r *ReapReport) Add(o ReapReport) {
	r.Scanned += o.Scanned
	r.Deleted += o.Deleted
	r.ObjectsDeleted += o.ObjectsDeleted
	r.Errors += o.Errors
}
