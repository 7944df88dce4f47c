package model

import (
	"errors"
	"fmt"
)

// Sentinel causes for model validation failures.
var (
	ErrDuplicateID       = errors.New("duplicate identifier")
	ErrUnknownNode       = errors.New("unknown node")
	ErrUnknownLink       = errors.New("unknown link")
	ErrUnknownPattern    = errors.New("unknown pattern")
	ErrUnknownCurve      = errors.New("unknown curve")
	ErrSameEndpoints     = errors.New("link endpoints must differ")
	ErrNonPositive       = errors.New("value must be positive")
	ErrUnsortedCurve     = errors.New("curve points must have strictly increasing x")
	ErrNoFixedHead       = errors.New("demand component has no reservoir or tank")
	ErrInvalidField      = errors.New("invalid field value")
	ErrMissingTraceNode  = errors.New("trace mode requires a trace node")
	ErrTankLevelOrdering = errors.New("tank levels must satisfy min <= init <= max")
)

// ModelError is a fatal pre-run validation failure, with enough structure to
// point at the offending entity.
type ModelError struct {
	Entity string // "junction", "pipe", "pattern", ...
	ID     string // entity identifier, if applicable
	Field  string // offending field, if applicable
	Cause  error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	switch {
	case e.ID != "" && e.Field != "":
		return fmt.Sprintf("model: %s %q (field %s): %v", e.Entity, e.ID, e.Field, e.Cause)
	case e.ID != "":
		return fmt.Sprintf("model: %s %q: %v", e.Entity, e.ID, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("model: %s (field %s): %v", e.Entity, e.Field, e.Cause)
	default:
		return fmt.Sprintf("model: %s: %v", e.Entity, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *ModelError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's cause.
func (e *ModelError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

func modelErr(entity, id string, cause error) *ModelError {
	return &ModelError{Entity: entity, ID: id, Cause: cause}
}

func fieldErr(entity, id, field string, cause error) *ModelError {
	return &ModelError{Entity: entity, ID: id, Field: field, Cause: cause}
}
