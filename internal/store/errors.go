package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity violates a store constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrLocked is returned when the store refuses to change a locked question.
	ErrLocked = errors.New("entity is locked")

	// ErrTransactionFailed is returned when a database transaction fails
	// to begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrUploadNotFound   = fmt.Errorf("%w: upload", ErrNotFound)
	ErrPageNotFound     = fmt.Errorf("%w: page", ErrNotFound)
	ErrAttemptNotFound  = fmt.Errorf("%w: generation attempt", ErrNotFound)
	ErrQuestionNotFound = fmt.Errorf("%w: question", ErrNotFound)
	ErrChapterNotFound  = fmt.Errorf("%w: chapter", ErrNotFound)
	ErrSubjectNotFound  = fmt.Errorf("%w: subject", ErrNotFound)

	ErrDuplicateAttempt   = fmt.Errorf("%w: generation attempt", ErrDuplicate)
	ErrDuplicateBankEntry = fmt.Errorf("%w: bank entry", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "page", "question")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
