package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 這個變數會在測試時被覆蓋
var newUUID = uuid.NewString

// NewUploadKey uploads bucket key: <ownerID>/<uuid><lowercased ext>
func NewUploadKey(ownerID, filename string) string {
	return ownerID + "/" + newUUID() + strings.ToLower(filepath.Ext(filename))
}

// NewFinalKey videos bucket key for a transcoded file: videos/<ownerID>/<unixMilli>-<uuid>.mp4
func NewFinalKey(ownerID string, now time.Time) string {
	return fmt.Sprintf("videos/%s/%d-%s.mp4", ownerID, now.UnixMilli(), newUUID())
}

// NewVideoID video primary key
func NewVideoID() string {
	return newUUID()
}
