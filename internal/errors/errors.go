// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrRulesLocked      = errors.New("rules are locked during market hours")
	ErrInvalidTrade     = errors.New("invalid trade request")
	ErrInvalidRules     = errors.New("invalid rule set")
	ErrInvalidPosition  = errors.New("invalid position")
	ErrPositionNotFound = errors.New("position not found")
	ErrStoreClosed      = errors.New("store is closed")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
	ErrRecordCorrupt    = errors.New("record could not be decoded")
)

// ValidationError represents a validation error on a single field.
// Kind is the sentinel the error matches through errors.Is.
type ValidationError struct {
	Kind    error
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap returns the sentinel kind.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewValidationError creates a new ValidationError.
func NewValidationError(kind error, field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StoreError represents a failure reading or writing a persisted record.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s %s]: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, collection string, err error) *StoreError {
	return &StoreError{
		Op:         op,
		Collection: collection,
		Err:        err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
