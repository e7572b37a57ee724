/*
errors.go - Centralized error types for the access engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure mode is a typed result the caller must handle; the
  engine never swallows errors.

ERROR CATEGORIES:
  1. Input errors     - Bad creation/update parameters, rejected before mutation
  2. Denial errors    - Expected redemption outcomes (disabled/expired/exhausted)
  3. Store errors     - Missing codes, duplicate codes, CAS conflicts
  4. Generator errors - Could not find a free code within the retry cap

USAGE:
  The HTTP layer maps these with errors.Is / errors.As:

    var denied *access.DeniedError
    if errors.As(err, &denied) {
        // 401 with denied.Message()
    }

SEE ALSO:
  - service.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package access

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidArgument is returned when creation or update parameters are
	// out of range. No mutation has occurred.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when the referenced code does not exist.
	ErrNotFound = errors.New("access code not found")

	// ErrCodeExists is returned by CodeStore.Create on a duplicate code.
	ErrCodeExists = errors.New("access code already exists")

	// ErrConcurrentModification is returned when compare-and-swap detects a
	// conflicting write. The service retries; callers should never see it
	// except through IsRetryable.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrGenerationExhausted is returned when the generator could not find a
	// free code within its retry cap. Signals a configuration problem
	// (alphabet or length too small for the population).
	ErrGenerationExhausted = errors.New("code generation exhausted retries")
)

// =============================================================================
// REASON - Why a redemption was denied (or not)
// =============================================================================

type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonNotFound  Reason = "not_found"
	ReasonDisabled  Reason = "disabled"
	ReasonExpired   Reason = "expired"
	ReasonExhausted Reason = "exhausted"
)

// Message returns the user-facing denial message for a reason. Reasons are
// distinct strings so clients can show "expired" vs. "used up".
func (r Reason) Message() string {
	switch r {
	case ReasonNotFound:
		return "Invalid access code"
	case ReasonDisabled:
		return "Access code has been disabled"
	case ReasonExpired:
		return "Access code has expired"
	case ReasonExhausted:
		return "Access code has no remaining uses"
	default:
		return "Access code validated successfully"
	}
}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// DeniedError reports an expected redemption failure. The attempt has been
// recorded in the audit log; no code state changed.
type DeniedError struct {
	Code   string
	Reason Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s (%s)", e.Reason, e.Code)
}

// Message returns the user-facing text for this denial.
func (e *DeniedError) Message() string { return e.Reason.Message() }

// InvalidArgumentError carries the offending field and constraint.
type InvalidArgumentError struct {
	Field  string
	Detail string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing code.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDenied returns the denial if err is an expected redemption failure.
func IsDenied(err error) (*DeniedError, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}
