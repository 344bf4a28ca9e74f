package store

import "fmt"

// transferError signals a network or object-store fault during a transfer.
type transferError struct {
	key string
	err error
}

func (e transferError) Error() string { return fmt.Sprintf("transfer %s: %v", e.key, e.err) }
func (e transferError) Unwrap() error { return e.err }

// ErrTransfer wraps err as a transfer failure for key.
func ErrTransfer(key string, err error) error { return transferError{key: key, err: err} }

// IsTransfer reports whether err indicates a network/object-store fault.
func IsTransfer(err error) bool {
	_, ok := err.(transferError)
	return ok
}

// corruptError signals a checksum mismatch on fetched bytes.
type corruptError struct {
	key  string
	want string
	got  string
}

func (e corruptError) Error() string {
	return fmt.Sprintf("corrupt %s: sha256 want %s got %s", e.key, e.want, e.got)
}

// ErrCorrupt constructs a checksum-mismatch error for key.
func ErrCorrupt(key, want, got string) error { return corruptError{key: key, want: want, got: got} }

// IsCorrupt reports whether err indicates a checksum mismatch.
func IsCorrupt(err error) bool {
	_, ok := err.(corruptError)
	return ok
}

// notFoundError signals a missing object key.
type notFoundError struct{ key string }

func (e notFoundError) Error() string { return "object not found: " + e.key }

// ErrNotFound returns an error for an absent object key.
func ErrNotFound(key string) error { return notFoundError{key: key} }

// IsNotFound reports whether err indicates a missing object key.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}
