package service

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden indicates the acting member lacks the admin role.
	ErrForbidden = errors.New("admin role required")

	// ErrInvalidCredentials is the single error returned for every
	// authentication failure. It never reveals whether the identifier
	// exists.
	ErrInvalidCredentials = errors.New("invalid identifier or secret")

	// ErrInvalidTransition indicates an approval was attempted on a
	// transaction that never enters the workflow (purchase/adjustment).
	ErrInvalidTransition = errors.New("transaction is not an approvable payment")
)

// ValidationError reports malformed input. It is surfaced to the caller
// and never written to the ledger.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
