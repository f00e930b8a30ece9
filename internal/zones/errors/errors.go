package errors

import "errors"

var (
	ErrNotFound = errors.New("zone not found")

	ErrDuplicateName = errors.New("zone with this name already exists")
)
