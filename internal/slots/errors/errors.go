package errors

import "errors"

var (
	ErrNotFound = errors.New("availability slot not found")
)
