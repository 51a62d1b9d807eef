package taskchat_errors

import "errors"

// Common errors
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotConnected  = errors.New("not connected")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrSessionClosed = errors.New("session closed")
	ErrUnknownEvent  = errors.New("unknown event")
)
