package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks every error caused by the caller's input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a game id is not indexed.
	ErrNotFound = errors.New("not found")
)

// ValidationError rejects one request field. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// PGNError reports preview text that does not parse as PGN.
// It matches both ErrInvalidInput and the parser's error.
type PGNError struct {
	Err error
}

func (e *PGNError) Error() string {
	return "malformed PGN: " + e.Err.Error()
}

func (e *PGNError) Unwrap() []error {
	return []error{ErrInvalidInput, e.Err}
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
