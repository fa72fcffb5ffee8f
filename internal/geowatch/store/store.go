package store

import "errors"

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness or
	// state constraint (duplicate assignment, illegal alert transition).
	ErrConflict = errors.New("conflict")
)
