package state

import "fmt"

// ValidationError reports a rejected operation. No state was mutated.
type ValidationError struct {
	Code string // machine-readable, e.g. "UNKNOWN_WORKER", "SIZE_MISMATCH"
	Msg  string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(code, format string, args ...any) error {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError reports a charge rejected for lack of balance.
// Only hard-rejection call sites return this; recurring fees and wages
// degrade gracefully instead of erroring.
type InsufficientFundsError struct {
	Needed    Cents
	Available Cents
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d cents, have %d", e.Needed, e.Available)
}

// InvariantViolation reports an illegal internal transition, e.g. stepping an
// execution out of a terminal status. Unreachable under correct orchestration.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }
