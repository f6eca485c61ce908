package domain

import "errors"

// Sentinel errors for the application.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrNotFound         = errors.New("resource not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrConflict         = errors.New("resource already exists")
)
