package errors

import "errors"

var (
	ErrNotFound = errors.New("visit not found")
)
