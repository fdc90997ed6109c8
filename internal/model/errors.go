package model

import "errors"

// Error kinds shared by stores, services and the HTTP layer. Wrap them with
// fmt.Errorf("...: %w", ErrX) to add detail; callers match with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage error")
)
