package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrIllegalTransition is returned when a page status change is not
	// permitted by the page state machine.
	ErrIllegalTransition = errors.New("illegal page status transition")

	// ErrNoEligiblePages is returned when start-generation finds no pending pages.
	ErrNoEligiblePages = errors.New("no eligible pages")

	// ErrLockConflict is returned when a mutation targets a page or question
	// set that contains a question already published to the bank.
	ErrLockConflict = errors.New("question set is locked")

	// ErrNotApproved is returned when publishing a question that is not approved.
	ErrNotApproved = errors.New("question is not approved")

	// ErrAlreadyLocked is returned when publishing a question that is already in the bank.
	ErrAlreadyLocked = errors.New("question is already published")

	// ErrClassificationMismatch is returned when an upload's chapter does not
	// belong to the chosen subject and class.
	ErrClassificationMismatch = errors.New("chapter does not match subject or class")

	// ErrInvalidDocument is returned for uploads that are not usable PDFs.
	ErrInvalidDocument = errors.New("invalid document")
)
