package controller

import "errors"

// Pre-flight failures. None of these ever reach the store.
var (
	ErrOutsideBoundary = errors.New("geometry is outside the reference boundary")
	ErrValidation      = errors.New("validation failed")
	ErrNoPending       = errors.New("no pending zone to save")
	ErrNotFound        = errors.New("entity not found")
)

var (
	// ErrBusy is returned while another request for the same entity is outstanding.
	ErrBusy = errors.New("a request for this entity is already in flight")
	// ErrCancelled is returned when the user dismisses a prompt or a location pick.
	ErrCancelled = errors.New("operation cancelled")
	ErrClosed    = errors.New("controller is closed")
)
