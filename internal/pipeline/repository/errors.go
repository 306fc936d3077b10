package repository

import "errors"

var (
	// ErrNotFound no row matches
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict the row's current status does not allow the change
	ErrStatusConflict = errors.New("status conflict")
)
