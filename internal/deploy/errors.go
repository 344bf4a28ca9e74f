package deploy

import "fmt"

// busyError signals that a deployment attempt is already rolling.
type busyError struct{ instance string }

func (e busyError) Error() string { return "deployment already in progress for " + e.instance }

// ErrBusy constructs a busy error for instance.
func ErrBusy(instance string) error { return busyError{instance: instance} }

// IsBusy reports whether err indicates an occupied deployment slot.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}

// swapFailedError signals that the remote swap reported failure.
type swapFailedError struct {
	tag    string
	detail string
}

func (e swapFailedError) Error() string { return fmt.Sprintf("swap to %s failed: %s", e.tag, e.detail) }

// ErrSwapFailed constructs a swap-failure error.
func ErrSwapFailed(tag, detail string) error { return swapFailedError{tag: tag, detail: detail} }

// IsSwapFailed reports whether err indicates a failed remote swap.
func IsSwapFailed(err error) bool {
	_, ok := err.(swapFailedError)
	return ok
}
