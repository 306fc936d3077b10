package domain

import (
	"time"
)

// JobStatus PendingJob lifecycle state
type JobStatus string

const (
	//JobInitiated upload credential issued, object not confirmed
	JobInitiated JobStatus = "initiated"
	//JobUploaded object confirmed in uploads bucket, waiting for a worker
	JobUploaded JobStatus = "uploaded"
	//JobProcessing claimed by a worker
	JobProcessing JobStatus = "processing"
	//JobDone finalized into a Video
	JobDone JobStatus = "done"
	//JobFailed worker reported failure
	JobFailed JobStatus = "failed"
)

// Valid check s is one of the declared states
func (s JobStatus) Valid() bool {
	switch s {
	case JobInitiated, JobUploaded, JobProcessing, JobDone, JobFailed:
		return true
	}
	return false
}

// IsTerminal done and failed never move again
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// CanTransition the forward moves a job may make
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobInitiated:
		return to == JobUploaded
	case JobUploaded:
		return to == JobProcessing
	case JobProcessing:
		return to == JobDone || to == JobFailed
	case JobDone, JobFailed:
		return false
	}
	return false
}

// CanReclaim processing -> uploaded, only used by the stuck job sweep
func CanReclaim(from JobStatus) bool {
	return from == JobProcessing
}

// NonTerminalStatuses states the stale sweep considers
var NonTerminalStatuses = []JobStatus{JobInitiated, JobUploaded, JobProcessing}

// TerminalStatuses states the retention purge considers
var TerminalStatuses = []JobStatus{JobDone, JobFailed}

// PendingJob 上傳到轉檔完成之間的工作紀錄，同時也是轉檔佇列
type PendingJob struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	OwnerID          string      `gorm:"type:varchar(64);not null;index" json:"ownerId"`
	StorageKey       string      `gorm:"type:text;not null;uniqueIndex" json:"storageKey"`
	OriginalFilename string      `gorm:"type:text" json:"originalFilename"`
	ContentType      string      `gorm:"type:varchar(255)" json:"contentType,omitempty"`
	Title            *string     `gorm:"type:text" json:"title,omitempty"`
	Description      *string     `gorm:"type:text" json:"description,omitempty"`
	Visibility       *Visibility `gorm:"type:varchar(16)" json:"visibility,omitempty"`
	Status           JobStatus   `gorm:"type:varchar(16);not null;default:initiated;index" json:"status"`
	FailReason       string      `gorm:"type:text" json:"failReason,omitempty"`
	CreatedAt        time.Time   `gorm:"not null;index" json:"createdAt"`
	ExpiresAt        time.Time   `gorm:"not null" json:"expiresAt"`
	ClaimedAt        *time.Time  `json:"claimedAt,omitempty"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}
