package store

import "errors"

// Domain errors for the document store.
var (
	// ErrUnknownDriver is returned when the storage driver name is not recognised.
	ErrUnknownDriver = errors.New("store: unknown driver")

	// ErrCorruptDocument is returned when persisted data cannot be decoded.
	ErrCorruptDocument = errors.New("store: corrupt document")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("store: closed")
)
