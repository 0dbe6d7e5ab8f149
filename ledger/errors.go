/*
errors.go - Centralized error taxonomy for the invoice core

PURPOSE:
  All reportable error kinds in one place. Callers receive the specific
  kind, never a generic failure, and nothing is retried internally.

ERROR CATEGORIES:
  1. Lookup errors      - NotFound, AlreadyExists
  2. Authorization      - Unauthorized
  3. Transition errors  - InvalidStatus, AlreadyPaid
  4. Validation errors  - InvalidAmount
  5. Settlement errors  - InvalidToken, PaymentFailed
  6. Configuration      - AlreadyInitialized

USAGE:
  Use errors.Is for kind checks:

    if errors.Is(err, ledger.ErrAlreadyPaid) {
        // too late, not wrong phase
    }

  Structured errors carry context and unwrap to their sentinel:

    var te *ledger.TransitionError
    if errors.As(err, &te) {
        log.Printf("op %s rejected in status %s", te.Op, te.Status)
    }

SEE ALSO:
  - service.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced invoice ID has no record.
	ErrNotFound = errors.New("invoice not found")

	// ErrAlreadyExists is returned on create with a colliding ID.
	ErrAlreadyExists = errors.New("invoice already exists")

	// ErrUnauthorized is returned when the caller identity fails either the
	// consent check or the role check for the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidStatus is returned when the current status is outside the
	// operation's required set.
	ErrInvalidStatus = errors.New("invalid invoice status")

	// ErrAlreadyPaid is returned by pay on an already-Paid invoice. Distinct
	// from ErrInvalidStatus so callers can tell "too late" from "wrong phase".
	ErrAlreadyPaid = errors.New("invoice already paid")

	// ErrInvalidAmount is returned when an amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidToken is returned when pay is attempted before a settlement
	// asset has been configured.
	ErrInvalidToken = errors.New("settlement asset not configured")

	// ErrPaymentFailed is returned when the settlement transfer itself fails.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrAlreadyInitialized is returned when Initialize is called after
	// admin configuration has been stored.
	ErrAlreadyInitialized = errors.New("ledger already initialized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError reports which invoice was missing.
type NotFoundError struct {
	InvoiceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("invoice %q not found", e.InvoiceID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RoleError reports a caller that does not hold the required role on the
// invoice. Produced after the record is loaded, never before.
type RoleError struct {
	Op        Op
	InvoiceID string
	Caller    Identity
	Required  IndexRole
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("%s: %s is not the %s of invoice %q", e.Op, e.Caller, e.Required, e.InvoiceID)
}

func (e *RoleError) Unwrap() error { return ErrUnauthorized }

// TransitionError reports an operation applied in a status outside its
// required set.
type TransitionError struct {
	Op        Op
	InvoiceID string
	Status    Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: invoice %q is %s", e.Op, e.InvoiceID, e.Status)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStatus }

// PaymentError wraps a settlement transfer failure with invoice context.
type PaymentError struct {
	InvoiceID string
	Cause     error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment for invoice %q failed: %v", e.InvoiceID, e.Cause)
}

func (e *PaymentError) Unwrap() error { return ErrPaymentFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input or
// a precondition the caller can observe, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAlreadyInitialized)
}

// IsNotFound returns true if the error indicates a missing invoice.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
