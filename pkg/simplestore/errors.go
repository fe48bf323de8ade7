package simplestore

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidInput indicates missing or malformed caller input
	ErrInvalidInput = errors.New("invalid input")

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrObjectNotFound indicates an object was not found
	ErrObjectNotFound = errors.New("object not found")

	// ErrUniqueViolation indicates a write collided with a uniqueness constraint
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// ValidationError reports which input was rejected and why.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// UniqueViolationError is raised by repositories when an insert or update
// collides with a unique constraint.
type UniqueViolationError struct {
	Constraint string
	Field      string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("duplicate value for %s (constraint %s)", e.Field, e.Constraint)
	}
	return fmt.Sprintf("duplicate value (constraint %s)", e.Constraint)
}

func (e *UniqueViolationError) Is(target error) bool {
	return target == ErrUniqueViolation
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}

// UserError represents an error related to user operations
type UserError struct {
	UserID int64
	Op     string
	Err    error
}

func (e *UserError) Error() string {
	return fmt.Sprintf("user operation %s failed for user %d: %v", e.Op, e.UserID, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the referenced user or object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrObjectNotFound)
}
