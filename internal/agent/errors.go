package agent

import "fmt"

// pullError signals that the image for a tag could not be pulled.
type pullError struct {
	ref string
	err error
}

func (e pullError) Error() string { return fmt.Sprintf("pull %s: %v", e.ref, e.err) }
func (e pullError) Unwrap() error { return e.err }

// ErrPull wraps err as a registry pull failure for ref.
func ErrPull(ref string, err error) error { return pullError{ref: ref, err: err} }

// IsPull reports whether err indicates a failed image pull.
func IsPull(err error) bool {
	_, ok := err.(pullError)
	return ok
}

// timeoutError signals an exhausted readiness budget.
type timeoutError struct{ msg string }

func (e timeoutError) Error() string { return e.msg }

// ErrTimeout constructs a readiness-timeout error.
func ErrTimeout(msg string) error { return timeoutError{msg: msg} }

// IsTimeout reports whether err indicates an exhausted readiness budget.
func IsTimeout(err error) bool {
	_, ok := err.(timeoutError)
	return ok
}

// busyError signals a swap already in progress.
type busyError struct{}

func (busyError) Error() string { return "swap already in progress" }

// ErrSwapBusy returns the agent's busy error.
func ErrSwapBusy() error { return busyError{} }

// IsSwapBusy reports whether err indicates a concurrent swap attempt.
func IsSwapBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}
