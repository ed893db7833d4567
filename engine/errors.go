/*
errors.go - Centralized error types for the calculation engine

PURPOSE:
  All engine error kinds in one place. Callers classify with errors.Is and
  the helpers below; the HTTP layer maps kinds to status codes.

ERROR CATEGORIES:
  1. Input errors      - bad or missing request fields (400-equivalent)
  2. Reference errors  - unknown activity names (404-equivalent)
  3. Configuration     - roles that resolve to no usable strategy

All engine failures are synchronous validation failures returned to the
caller. None are retryable, and none produce partial results.

SEE ALSO:
  - composer.go: Request validation producing these errors
  - store/sqlite: ErrDuplicateRecord, the persistence-side conflict
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrActivityNotFound is returned when no tiers are registered for the
	// requested activity name.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrInvalidInput is returned for malformed field values, such as
	// non-positive hours worked or a negative task count.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingRequiredFields is returned when the resolved strategy's
	// required inputs are absent from the request.
	ErrMissingRequiredFields = errors.New("missing required fields")

	// ErrUnknownRole is returned when the request carries no role at all,
	// so no strategy can be selected.
	ErrUnknownRole = errors.New("unknown role")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InputError carries a field-level message for the caller to surface
// verbatim. It wraps one of the sentinel kinds above.
type InputError struct {
	Field   string
	Message string
	Kind    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *InputError) Unwrap() error { return e.Kind }

func invalidInput(field, message string) error {
	return &InputError{Field: field, Message: message, Kind: ErrInvalidInput}
}

func missingField(field, message string) error {
	return &InputError{Field: field, Message: message, Kind: ErrMissingRequiredFields}
}

// ActivityNotFoundError names the activity that has no tier ladder.
type ActivityNotFoundError struct {
	ActivityName string
}

func (e *ActivityNotFoundError) Error() string {
	return fmt.Sprintf("no tiers registered for activity %q", e.ActivityName)
}

func (e *ActivityNotFoundError) Unwrap() error { return ErrActivityNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMissingRequiredFields) ||
		errors.Is(err, ErrUnknownRole)
}

// IsNotFound returns true if the error indicates missing reference data.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrActivityNotFound)
}
