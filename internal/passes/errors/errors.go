package errors

import "errors"

var (
	ErrNotFound = errors.New("pass not found")

	// ErrExhausted means the conditional decrement matched no document:
	// the pass ran out of visits between listing and consuming.
	ErrExhausted = errors.New("pass has no remaining visits")
)
