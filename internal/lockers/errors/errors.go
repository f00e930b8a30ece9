package errors

import "errors"

var (
	ErrNotFound = errors.New("locker not found")

	// ErrNoneFree means the atomic claim matched no free locker in the
	// requested category.
	ErrNoneFree = errors.New("no free locker in category")
)
