package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package.
var (
	// ErrInvalidResponse is returned when the LLM response cannot be parsed
	// or fails schema checks. Attempt-level, retryable.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrProviderFailure is returned for errors calling the provider:
	// transport errors, timeouts and non-success replies. Attempt-level, retryable.
	ErrProviderFailure = errors.New("language model provider failure")

	// ErrContentBlocked is returned when the provider refuses the content.
	ErrContentBlocked = fmt.Errorf("%w: content blocked by safety filters", ErrProviderFailure)

	// ErrTransientFailure is returned for failures expected to clear on retry,
	// such as rate limits and timeouts.
	ErrTransientFailure = fmt.Errorf("%w: transient error", ErrProviderFailure)

	// ErrInvalidConfig is returned when the generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
