package model

import "errors"

// Storage-level sentinels returned by repository implementations.
var (
	ErrTripNotFound   = errors.New("trip not found")
	ErrStatusConflict = errors.New("trip status precondition failed")
)
