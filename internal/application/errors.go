package application

import (
	"errors"
	"fmt"

	"github.com/example/bloc-scheduler/internal/persistence"
	"github.com/example/bloc-scheduler/internal/validation"
)

var (
	// ErrNotFound is returned when a referenced room, sector, rule,
	// planning, or template does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidInput is returned for structurally malformed requests:
	// inverted date ranges, unknown move types, empty period bounds.
	ErrInvalidInput = errors.New("application: invalid input")
	// ErrStaleWrite is returned when the store rejected a save because the
	// record changed underneath the caller. Never retried internally.
	ErrStaleWrite = errors.New("application: stale write")
	// ErrPersistence is returned when the store failed for operational
	// reasons (timeout, connection loss).
	ErrPersistence = errors.New("application: persistence failure")
)

// ConflictError reports a mutation blocked by a referential invariant, with
// enough context to render a useful message.
type ConflictError struct {
	Entity    string
	EntityID  string
	Reference string
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c.Reference == "" {
		return fmt.Sprintf("%s %s cannot be modified", c.Entity, c.EntityID)
	}
	return fmt.Sprintf("%s %s is still referenced by %s", c.Entity, c.EntityID, c.Reference)
}

// ValidationFailedError carries the full issue list of a failed validation,
// not just a boolean.
type ValidationFailedError struct {
	Result validation.Result
}

// Error implements the error interface.
func (v *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed with %d errors", len(v.Result.Errors))
}

// ValidationError captures field level validation issues for malformed
// requests, as opposed to rule violations in a planning.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// Unwrap lets callers match field validation problems as ErrInvalidInput.
func (v *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// ErrorKind maps errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return "conflict"
	}
	var failed *ValidationFailedError
	if errors.As(err, &failed) {
		return "validation_failed"
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrStaleWrite):
		return "stale_write"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	}
	return "internal"
}

// mapRepoError translates persistence sentinels into application errors.
// Unknown store failures surface as persistence failures and are never
// retried here.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrStaleWrite):
		return ErrStaleWrite
	case errors.Is(err, persistence.ErrConstraintViolation), errors.Is(err, persistence.ErrDuplicate):
		vErr := &ValidationError{}
		vErr.add("record", err.Error())
		return vErr
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
