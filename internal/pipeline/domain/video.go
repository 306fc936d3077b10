package domain

import (
	"time"
)

// Visibility who may read a Video
type Visibility string

const (
	//VisibilityHidden owner and admin only
	VisibilityHidden Visibility = "hidden"
	//VisibilityLinkOnly anyone with the id, not listed
	VisibilityLinkOnly Visibility = "link-only"
	//VisibilityPublic anyone
	VisibilityPublic Visibility = "public"
)

// Valid check v is one of the declared values
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityHidden, VisibilityLinkOnly, VisibilityPublic:
		return true
	}
	return false
}

// Video 定義影片模型, one per finalized PendingJob
type Video struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID         string     `gorm:"type:varchar(64);not null;index" json:"ownerId"`
	Title           string     `gorm:"type:text;not null" json:"title"`
	Description     string     `gorm:"type:text;not null" json:"description"`
	Visibility      Visibility `gorm:"type:varchar(16);not null;default:public" json:"visibility"`
	LikeCount       int        `gorm:"not null;default:0" json:"likeCount"`
	DislikeCount    int        `gorm:"not null;default:0" json:"dislikeCount"`
	CreatedDate     time.Time  `gorm:"not null" json:"createdDate"`
	DurationSeconds int        `gorm:"not null" json:"durationSeconds"`
	StorageKey      string     `gorm:"type:text;not null" json:"storageKey"` // videos bucket object key of the transcoded file
	SourceKey       string     `gorm:"type:text;not null;uniqueIndex" json:"-"`
	Width           *int       `json:"width,omitempty"`
	Height          *int       `json:"height,omitempty"`
}

// Caller identity of the requester, zero value is anonymous
type Caller struct {
	ID      string
	IsAdmin bool
}

// Anonymous no token presented
func (c Caller) Anonymous() bool {
	return c.ID == ""
}

// CanRead visibility gate, hidden videos are visible to owner and admin only
func (v *Video) CanRead(c Caller) bool {
	if v.Visibility != VisibilityHidden {
		return true
	}
	return v.CanModify(c)
}

// CanModify owner or admin
func (v *Video) CanModify(c Caller) bool {
	return c.IsAdmin || (!c.Anonymous() && c.ID == v.OwnerID)
}

// UpdateVideoReq partial update, nil fields untouched
type UpdateVideoReq struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}

// Empty nothing to update
func (r UpdateVideoReq) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Visibility == nil
}

// StreamURLRes signed read url for a video
type StreamURLRes struct {
	URL string `json:"url"`
}
