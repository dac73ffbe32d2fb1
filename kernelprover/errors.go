package kernelprover

import (
	"errors"
	"fmt"
)

// Error is a coded error of the kernel prover. Errors with the same code are
// considered equal by errors.Is, and the wrapped cause stays reachable.
type Error struct {
	Err  error
	Code int
}

// Error returns the message of the wrapped error.
func (e Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an Error with the same code.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Code == e.Code
}

// With returns a copy of the error with s appended.
func (e Error) With(s string) Error {
	return Error{Err: fmt.Errorf("%w: %v", e.Err, s), Code: e.Code}
}

// Withf returns a copy of the error with the formatted string appended.
func (e Error) Withf(format string, args ...any) Error {
	return Error{Err: fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)), Code: e.Code}
}

// WithErr returns a copy of the error wrapping err.
func (e Error) WithErr(err error) Error {
	return Error{Err: fmt.Errorf("%w: %w", e.Err, err), Code: e.Code}
}

var (
	// ErrLookupFailure is returned when the oracle cannot serve a lookup.
	ErrLookupFailure = Error{Code: 1, Err: errors.New("lookup failure")}
	// ErrCircuitSimulation is returned when a kernel circuit cannot be
	// simulated, or rejects its inputs.
	ErrCircuitSimulation = Error{Code: 2, Err: errors.New("circuit simulation failure")}
	// ErrComposition is returned when the chain cannot be composed into a
	// client IVC proof.
	ErrComposition = Error{Code: 3, Err: errors.New("composition failure")}

	// ErrResetNotPossible is returned when a reset is needed but no hint can
	// be built to make progress.
	ErrResetNotPossible = errors.New("reset needed but no request can be resolved")

	errNoResult = errors.New("no result and no error")
)

// nonNil turns a nil result returned without error into errNoResult.
func nonNil[T any](v *T, err error) (*T, error) {
	if err == nil && v == nil {
		return nil, errNoResult
	}
	return v, err
}
