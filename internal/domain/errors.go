// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"strings"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write would violate a uniqueness or existence rule
// (duplicate branch name, second MFI, branch without an MFI).
var ErrConflict = errors.New("conflict")

// ErrValidation indicates a missing or malformed input field.
var ErrValidation = errors.New("validation failed")

// ErrForbidden indicates the principal lacks the permission for the action.
var ErrForbidden = errors.New("forbidden")

// ErrUpstream indicates an external dependency (object storage) failed.
var ErrUpstream = errors.New("upstream failure")

// FieldError describes one offending input field.
type FieldError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// ValidationError collects every offending field of a request so callers can
// report all of them at once. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Fields []FieldError
}

// Add records a field error.
func (e *ValidationError) Add(source, message string) {
	e.Fields = append(e.Fields, FieldError{Source: source, Message: message})
}

// Require records message for source when value is blank.
func (e *ValidationError) Require(source, value, message string) {
	if strings.TrimSpace(value) == "" {
		e.Add(source, message)
	}
}

// OrNil returns e when at least one field was recorded, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(msgs, "; ")
}

// Is reports ErrValidation as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid returns a single-field ValidationError.
func Invalid(source, message string) error {
	return &ValidationError{Fields: []FieldError{{Source: source, Message: message}}}
}

// Problem is the JSON error body returned to API clients. Type names the
// failed operation (for example "BRANCH_CREATION_ERROR").
type Problem struct {
	Type           string       `json:"type"`
	Message        string       `json:"message"`
	Status         int          `json:"status"`
	SpecificErrors []FieldError `json:"specific_errors"`
}
