// Package apperr defines the sentinel errors shared across dagaz layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnknownType   = errors.New("unknown type")
	ErrUnknownStatus = errors.New("unknown status")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrValidation    = errors.New("validation failed")
	ErrNotReady      = errors.New("store not initialized")
)
