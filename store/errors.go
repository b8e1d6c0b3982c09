package store

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a transaction loses a write-write race
	// and has exhausted its retry budget.
	ErrConflict = errors.New("transaction conflict")
)
