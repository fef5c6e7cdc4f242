package service

import "errors"

// Error taxonomy surfaced to callers. The HTTP layer maps these to status
// codes; a lost claim race is reported through AcceptResult, not an error.
var (
	ErrValidation          = errors.New("VALIDATION_ERROR")
	ErrNotFound            = errors.New("NOT_FOUND")
	ErrInvalidState        = errors.New("INVALID_STATE")
	ErrNotCompleted        = errors.New("NOT_COMPLETED")
	ErrUpstreamUnavailable = errors.New("UPSTREAM_UNAVAILABLE")
)
