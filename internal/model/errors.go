package model

import "fmt"

// formatError signals a malformed or inconsistent model dump.
type formatError struct {
	path string
	err  error
}

func (e formatError) Error() string { return fmt.Sprintf("bad model dump %s: %v", e.path, e.err) }
func (e formatError) Unwrap() error { return e.err }

// ErrFormat wraps err as a model-format failure for path.
func ErrFormat(path string, err error) error { return formatError{path: path, err: err} }

// IsFormat reports whether err indicates a corrupt or unsupported model dump.
func IsFormat(err error) bool {
	_, ok := err.(formatError)
	return ok
}
