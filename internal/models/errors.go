package models

import "errors"

// Error taxonomy shared by the stores, services and handlers.
// Callers wrap these with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("storage unavailable")
)
