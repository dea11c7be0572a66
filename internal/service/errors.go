package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrSelfDelete         = errors.New("users cannot delete their own account")
	ErrStorageFault       = errors.New("storage fault")
	ErrSummaryUnavailable = errors.New("summary service unavailable")
)

// storageFault tags a persistence failure so callers can tell it apart from
// domain errors without seeing driver details.
func storageFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFault, op, err)
}
