package errprocess

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"video_pipeline_service/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestKindCodes(t *testing.T) {
	cases := []struct {
		err  *AppError
		code int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Conflict("state"), http.StatusConflict},
		{RateLimit("slow down"), http.StatusTooManyRequests},
		{Internal("boom", errors.New("db")), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Code, c.err.Message)
	}
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFound("job not found"))

	appErr := As(wrapped)
	assert.NotNil(t, appErr)
	assert.Equal(t, KindNotFound, appErr.Kind)
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindConflict))
	assert.Nil(t, As(errors.New("plain")))
}

func TestSetReturnsInternal(t *testing.T) {
	logger.SetNewNop()

	err := Set("storageKey[u1/a.mp4] create pending job failed: dial tcp 10.0.0.5:5432: connection refused")
	assert.True(t, IsKind(err, KindInternal))

	appErr := As(err)
	assert.Equal(t, InternalMessage, appErr.PublicMessage())
	assert.NotContains(t, appErr.PublicMessage(), "10.0.0.5")
	// detail kept for logs
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "job not found", NotFound("job not found").PublicMessage())
	assert.Equal(t, InternalMessage, Internal("presign failed for bucket uploads", errors.New("x")).PublicMessage())
}

func TestUnknownKindFallsBackToInternal(t *testing.T) {
	err := New(Kind("teapot"), "??")
	assert.Equal(t, KindInternal, err.Kind)
	assert.Equal(t, http.StatusInternalServerError, err.Code)
}
