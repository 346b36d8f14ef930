package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource would be overwritten
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Pipeline errors

var (
	// ErrDataValidation indicates a raw value could not be coerced to the feature schema
	ErrDataValidation = errors.New("data validation failed")

	// ErrShapeMismatch indicates a feature vector disagrees with the model's feature list
	ErrShapeMismatch = errors.New("feature vector shape mismatch")

	// ErrTrainingFailure indicates every candidate estimator failed to fit
	ErrTrainingFailure = errors.New("training failed: no candidate estimator succeeded")

	// ErrAttributionUnavailable indicates an explanation could not be computed
	ErrAttributionUnavailable = errors.New("attribution unavailable")

	// ErrMissingLabels indicates training rows lack one or more horizon targets
	ErrMissingLabels = errors.New("missing horizon labels")

	// ErrEmptyDataset indicates no usable rows remain for training
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrModelNotLoaded indicates no trained model set is available for scoring
	ErrModelNotLoaded = errors.New("model set not loaded")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError reports a field that could not be coerced.
// Row is -1 when the error concerns a single record rather than a batch row.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
	Row     int
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("validation error: row %d: field '%s': %s (value: %v)", e.Row, e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets errors.Is match ErrDataValidation
func (e *ValidationError) Unwrap() error {
	return ErrDataValidation
}

// NewValidationError creates a new validation error for a single record
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Row:     -1,
	}
}

// ShapeError describes how a feature vector disagrees with the expected layout
type ShapeError struct {
	Expected int
	Got      int
	Position int // first mismatching position, -1 when only the length differs
	Want     string
	Have     string
}

// Error implements the error interface
func (e *ShapeError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%v: position %d: expected feature %q, got %q", ErrShapeMismatch, e.Position, e.Want, e.Have)
	}
	return fmt.Sprintf("%v: expected %d features, got %d", ErrShapeMismatch, e.Expected, e.Got)
}

// Unwrap lets errors.Is match ErrShapeMismatch
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Unwrap exposes the collected errors to errors.Is / errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
