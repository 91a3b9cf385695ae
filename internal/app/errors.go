package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateItem     = errors.New("duplicate item")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrSearchFailure     = errors.New("search failed")
	ErrPresetLoadFailure = errors.New("preset load failed")
	ErrSelectionLoad     = errors.New("saved selection unavailable")
	ErrInvalidRequest    = errors.New("invalid request")
)
