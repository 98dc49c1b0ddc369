package entity

import "errors"

// Sentinel errors the browser adapter maps its failures onto. Per-step
// failures built on these are absorbed by the executor and recorded;
// they never abort the run on their own.
var (
	ErrElementNotFound = errors.New("element not found")
	ErrActionTimeout   = errors.New("action timed out")
)

// FailureKindFor maps an execution error to the failure kind recorded on
// the step.
func FailureKindFor(err error) string {
	switch {
	case errors.Is(err, ErrActionTimeout):
		return FailureActionTimeout
	case errors.Is(err, ErrElementNotFound):
		return FailureElementNotFound
	default:
		return FailureElementNotFound
	}
}
