package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a compare-and-swap update observed a status
	// other than the expected one. Nothing was written.
	ErrConflict = errors.New("status conflict")

	// ErrDuplicate indicates a unique key already exists.
	ErrDuplicate = errors.New("already exists")
)

// TransientError wraps failures worth retrying: rate limiting, a busy
// database file, network hiccups. Anything else is permanent.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
