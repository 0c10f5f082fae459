package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrStaleWrite is returned when a save carries an outdated version of
	// the record; the caller must reload and retry.
	ErrStaleWrite = errors.New("persistence: stale write")
	// ErrConstraintViolation is returned when a record is structurally
	// rejected by the store.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
