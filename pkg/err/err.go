package errprocess

import (
	"errors"
	"fmt"
	"net/http"

	"video_pipeline_service/pkg/logger"
)

// Kind classify an AppError, one per HTTP status family the API answers with
type Kind string

const (
	// KindValidation malformed input
	KindValidation Kind = "validation"
	// KindUnauthorized missing or invalid credential
	KindUnauthorized Kind = "unauthorized"
	// KindForbidden ownership or role mismatch
	KindForbidden Kind = "forbidden"
	// KindNotFound unknown video / job / object
	KindNotFound Kind = "not_found"
	// KindConflict state does not allow the requested transition
	KindConflict Kind = "conflict"
	// KindRateLimit concurrency cap exceeded
	KindRateLimit Kind = "rate_limit"
	// KindInternal unexpected failure
	KindInternal Kind = "internal"
)

var kindCode = map[Kind]int{
	KindValidation:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindRateLimit:    http.StatusTooManyRequests,
	KindInternal:     http.StatusInternalServerError,
}

// AppError domain error carrying the status code it maps to
type AppError struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New build an AppError of the given kind
func New(kind Kind, msg string) *AppError {
	code, ok := kindCode[kind]
	if !ok {
		kind, code = KindInternal, http.StatusInternalServerError
	}
	return &AppError{Kind: kind, Code: code, Message: msg}
}

// Wrap build an AppError keeping cause for logs
func Wrap(kind Kind, msg string, err error) *AppError {
	e := New(kind, msg)
	e.Err = err
	return e
}

// Validation 400
func Validation(msg string) *AppError { return New(KindValidation, msg) }

// Unauthorized 401
func Unauthorized(msg string) *AppError { return New(KindUnauthorized, msg) }

// Forbidden 403
func Forbidden(msg string) *AppError { return New(KindForbidden, msg) }

// NotFound 404
func NotFound(msg string) *AppError { return New(KindNotFound, msg) }

// Conflict 409
func Conflict(msg string) *AppError { return New(KindConflict, msg) }

// RateLimit 429
func RateLimit(msg string) *AppError { return New(KindRateLimit, msg) }

// Internal 500
func Internal(msg string, err error) *AppError { return Wrap(KindInternal, msg, err) }

// InternalMessage the only text a caller sees for a 5xx
const InternalMessage = "internal server error"

// Set log errMsg and return an internal error, errMsg stays in Err for logs only
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return Internal(InternalMessage, errors.New(errMsg))
}

// PublicMessage message safe to send back, 5xx detail is never exposed
func (e *AppError) PublicMessage() string {
	if e.Code >= http.StatusInternalServerError {
		return InternalMessage
	}
	return e.Message
}

// As extract the AppError from err, nil when err is not one
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsKind report whether err is an AppError of kind
func IsKind(err error, kind Kind) bool {
	appErr := As(err)
	return appErr != nil && appErr.Kind == kind
}
