package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every error returned by the stores and services wraps exactly one of these,
// so callers classify failures with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

var (
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrInvalidCredentials = fmt.Errorf("incorrect password: %w", ErrUnauthorized)
	ErrMissingToken       = fmt.Errorf("no token provided: %w", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("invalid token: %w", ErrUnauthorized)
	ErrTokenNotFound      = fmt.Errorf("token not found: %w", ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("token expired: %w", ErrUnauthorized)
	ErrInvalidEmail       = fmt.Errorf("invalid email format: %w", ErrInvalidInput)
)

// DuplicateError reports a uniqueness violation on a single field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *DuplicateError) Unwrap() error { return ErrConflict }

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every field that failed validation for one write.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Map returns the failures keyed by field name.
func (e *ValidationError) Map() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Field] = f.Reason
	}
	return m
}

// Internal wraps a store or credential failure so it classifies as ErrInternal while
// keeping the cause inspectable.
func Internal(op string, err error) error {
	return &internalError{op: op, err: err}
}

type internalError struct {
	op  string
	err error
}

func (e *internalError) Error() string { return e.op + ": " + e.err.Error() }

func (e *internalError) Unwrap() []error { return []error{ErrInternal, e.err} }
