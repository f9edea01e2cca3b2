package model

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrMalformedOutput = errors.New("malformed model output")
	ErrDependency      = errors.New("dependency failure")
	ErrInvariant       = errors.New("invariant violation")
)
