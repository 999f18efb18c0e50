package store

import (
	"errors"
	"fmt"
)

// ErrStore is wrapped by every failure of a request that was sent, or
// attempted, against the remote store.
var ErrStore = errors.New("store request failed")

// StatusError is a non-2xx response.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrStore
}

// RejectedError is a 2xx response whose payload reports status "error".
// Message is the store's text, shown to the user verbatim.
type RejectedError struct {
	Op      string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "unknown error"
	}
	return e.Message
}

func (e *RejectedError) Unwrap() error {
	return ErrStore
}
