package dispatch

// notReadyError signals that no usable models are loaded yet (503 mapping).
type notReadyError struct{ msg string }

func (e notReadyError) Error() string { return e.msg }

// ErrNotReady constructs a not-ready error.
func ErrNotReady(msg string) error {
	if msg == "" {
		msg = "ensemble not ready"
	}
	return notReadyError{msg: msg}
}

// IsNotReady reports whether err indicates the dispatcher cannot serve yet.
func IsNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}

// badInputError signals an invalid feature vector (400 mapping).
type badInputError struct{ msg string }

func (e badInputError) Error() string { return e.msg }

// ErrBadInput constructs an invalid-input error.
func ErrBadInput(msg string) error { return badInputError{msg: msg} }

// IsBadInput reports whether err indicates an invalid feature vector.
func IsBadInput(err error) bool {
	_, ok := err.(badInputError)
	return ok
}
