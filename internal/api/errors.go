package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/quizgen-api/internal/api/shared"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, domain.ErrNoEligiblePages),
		errors.Is(err, domain.ErrLockConflict),
		errors.Is(err, domain.ErrNotApproved),
		errors.Is(err, domain.ErrAlreadyLocked),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, store.ErrLocked):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidDocument),
		errors.Is(err, domain.ErrClassificationMismatch):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Publish failures name their reason.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, store.ErrUploadNotFound):
		return "Upload not found"
	case errors.Is(err, store.ErrPageNotFound):
		return "Page not found"
	case errors.Is(err, store.ErrQuestionNotFound):
		return "Question not found"
	case errors.Is(err, store.ErrChapterNotFound):
		return "Chapter not found"
	case errors.Is(err, store.ErrSubjectNotFound):
		return "Subject not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, domain.ErrNoEligiblePages):
		return "No pending pages to generate"
	case errors.Is(err, domain.ErrLockConflict), errors.Is(err, store.ErrLocked):
		return "Questions are locked after publishing"
	case errors.Is(err, domain.ErrNotApproved):
		return "Only approved questions can be published"
	case errors.Is(err, domain.ErrAlreadyLocked):
		return "Question is already published"
	case errors.Is(err, domain.ErrIllegalTransition):
		return "Page is not in a state that allows this action"

	case errors.Is(err, domain.ErrInvalidDocument):
		return "Upload must be a PDF with 1 to 100 pages"
	case errors.Is(err, domain.ErrClassificationMismatch):
		return "Chapter does not belong to the selected subject and class"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format: "Key: 'BulkStatusRequest.Status' Error:Field validation for 'Status' failed on the 'oneof' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "gt", "gte":
		return "too small"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err. For server
// errors fallback replaces the generic message when it is not empty.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
