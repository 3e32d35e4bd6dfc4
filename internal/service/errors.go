package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/store"
)

// Error handling principles:
//  1. Expected conditions surface as sentinel errors from domain and store
//     so the API layer can map them with errors.Is.
//  2. Unexpected errors are wrapped in a ServiceError naming the operation.
//  3. Attempt-level LLM failures never leave the generation service; they
//     are recorded on the attempt and drive the retry schedule instead.

// ServiceError wraps unexpected failures of a service operation.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "start_generation", "bulk_publish")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// expected lists the errors callers branch on. They are returned with their
// context intact but without a ServiceError around them.
var expected = []error{
	store.ErrNotFound,
	domain.ErrValidation,
	domain.ErrIllegalTransition,
	domain.ErrNoEligiblePages,
	domain.ErrLockConflict,
	domain.ErrNotApproved,
	domain.ErrAlreadyLocked,
	domain.ErrClassificationMismatch,
	domain.ErrInvalidDocument,
}

// NewServiceError wraps err for operation. Known sentinel errors are
// returned as they are.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range expected {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

func missingDependency(operation, name string) error {
	return &ServiceError{Operation: operation, Message: name + " cannot be nil"}
}
