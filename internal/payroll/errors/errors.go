// Package errors holds the sentinel errors shared by the payroll domain,
// its repository and its transports. Callers classify failures with errors.Is.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// ErrInvalidTransition is returned when a record is moved out of a terminal status.
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrCurrencyMismatch  = fmt.Errorf("currency mismatch")
	ErrCycle             = fmt.Errorf("department hierarchy cycle")
	ErrOverlap           = fmt.Errorf("overlapping period")
	ErrOutsideContract   = fmt.Errorf("period outside contract")
)

// IsValidation reports whether err is a rejected business operation rather
// than an infrastructure failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidInput,
		ErrInvalidTransition,
		ErrCurrencyMismatch,
		ErrCycle,
		ErrOverlap,
		ErrOutsideContract,
	} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}
