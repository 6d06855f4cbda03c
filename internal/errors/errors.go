// Package errors holds the sentinel errors shared by every propgen package.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
// - Constructors that attach context while keeping errors.Is working

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Scheduling and alignment errors (fatal for a run)
	ErrEmptyIntersection = errors.New("no common time window across required series")
	ErrStreamExhausted   = errors.New("auxiliary stream exhausted before interval was covered")
	ErrOutOfOrder        = errors.New("rows out of order")

	// Store errors
	ErrMetadataUnavailable = errors.New("series metadata unavailable")
	ErrSeriesNotFound      = errors.New("series not found")
	ErrPersistence         = errors.New("persistence failed")
	ErrCatalogClosed       = errors.New("catalog is closed")

	// Processor errors
	ErrDuplicateProcessor = errors.New("duplicate processor name")
	ErrInvalidValue       = errors.New("invalid property value")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidPeriod = errors.New("invalid chunk period")
	ErrMissingField  = errors.New("missing required field")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSeriesNotFound) ||
		errors.Is(err, ErrMetadataUnavailable)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrDuplicateProcessor)
}

// IsFatal returns true if err must abort a generation run.
// Persistence failures are isolated per series and are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrPersistence)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

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

// ============================================================================
// Error constructors with context
// ============================================================================

// NewNotFound creates a series-not-found error with context.
func NewNotFound(name string) error {
	return fmt.Errorf("series '%s': %w", name, ErrSeriesNotFound)
}

// NewMetadataUnavailable creates a metadata error for a series key.
func NewMetadataUnavailable(key string, cause error) error {
	if cause == nil {
		return fmt.Errorf("series '%s': %w", key, ErrMetadataUnavailable)
	}
	return fmt.Errorf("series '%s': %w: %v", key, ErrMetadataUnavailable, cause)
}

// NewStreamExhausted reports that the iterator of key ran dry before end.
func NewStreamExhausted(key string, through, end int64) error {
	return fmt.Errorf("series '%s' covered through %d, interval ends at %d: %w",
		key, through, end, ErrStreamExhausted)
}

// NewOutOfOrder reports a timestamp regression within a series.
func NewOutOfOrder(key string, prev, next int64) error {
	return fmt.Errorf("series '%s': timestamp %d after %d: %w", key, next, prev, ErrOutOfOrder)
}

// NewPersistence wraps a save failure for a named property series.
func NewPersistence(name string, cause error) error {
	return fmt.Errorf("save '%s': %w: %w", name, ErrPersistence, cause)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
