package domain

import (
	"math"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTitle used when neither the worker, the job nor the filename gives one
	DefaultTitle = "Untitled"
	// DefaultVisibility for videos nobody chose a visibility for
	DefaultVisibility = VisibilityPublic
)

// firstPresent first non-nil candidate, in priority order
func firstPresent[T any](candidates ...*T) (T, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	var zero T
	return zero, false
}

func filenameTitle(filename string) *string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		return nil
	}
	return &base
}

// RoundDuration ffprobe seconds to whole seconds, 0 when unknown
func RoundDuration(sec *float64) int {
	if sec == nil || math.IsNaN(*sec) || *sec < 0 {
		return 0
	}
	return int(math.Round(*sec))
}

// BuildVideo resolve the final metadata for job.
// title: worker override > carried on job > original filename > "Untitled"
// description: worker override > carried > ""
// visibility: worker override > carried > public
func BuildVideo(id string, job *PendingJob, req CompleteJobReq, now time.Time) *Video {
	title, ok := firstPresent(req.Title, job.Title, filenameTitle(job.OriginalFilename))
	if !ok {
		title = DefaultTitle
	}
	description, _ := firstPresent(req.Description, job.Description)
	visibility, ok := firstPresent(validVisibility(req.Visibility), validVisibility(job.Visibility))
	if !ok {
		visibility = DefaultVisibility
	}

	return &Video{
		ID:              id,
		OwnerID:         job.OwnerID,
		Title:           title,
		Description:     description,
		Visibility:      visibility,
		CreatedDate:     now,
		DurationSeconds: RoundDuration(req.Meta.DurationSec),
		StorageKey:      req.FinalStorageKey,
		SourceKey:       job.StorageKey,
		Width:           req.Meta.Width,
		Height:          req.Meta.Height,
	}
}

func validVisibility(v *Visibility) *Visibility {
	if v == nil || !v.Valid() {
		return nil
	}
	return v
}
