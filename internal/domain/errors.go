package domain

import (
	"errors"
	"fmt"
)

// Error categories. Callers classify failures with errors.Is against these.
var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrAlreadyExists       = errors.New("already exists")
	ErrLockHeld            = errors.New("lock already held")
)

// Specific conflicts. Each wraps ErrConflict so errors.Is(err, ErrConflict)
// holds for all of them.
var (
	ErrAlreadyActive     = fmt.Errorf("%w: active position exists", ErrConflict)
	ErrAlreadyClosed     = fmt.Errorf("%w: trade already closed", ErrConflict)
	ErrNoActiveStraddle  = fmt.Errorf("%w: no pending straddle", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
)

// LedgerError annotates a ledger failure with the operation and symbol it
// happened on.
type LedgerError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *LedgerError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger: %s [%s]: %v", e.Op, e.Symbol, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Validationf builds an ErrValidation-wrapped error with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
