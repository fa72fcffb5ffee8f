// Package fault defines the error taxonomy shared by the engine and its
// transports.  Callers match with errors.As or the Is* helpers; transports
// map each kind onto a status code.
package fault

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input rejected before any side effect.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// PersistenceError reports that durable storage could not complete an
// operation.  The caller is expected to retry the whole request.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PolicyError reports a configuration or state-machine rule violation.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return "policy: " + e.Reason }

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// Persistence wraps err unless it already carries a taxonomy kind.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsNotFound(err) || IsPolicy(err) || IsPersistence(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func Policy(format string, args ...any) error {
	return &PolicyError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsPersistence(err error) bool {
	var e *PersistenceError
	return errors.As(err, &e)
}

func IsPolicy(err error) bool {
	var e *PolicyError
	return errors.As(err, &e)
}
