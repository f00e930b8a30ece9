package errors

import "errors"

var (
	ErrAlreadyProcessed = errors.New("payment already processed")
)
