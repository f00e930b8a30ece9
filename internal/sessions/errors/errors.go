package errors

import "errors"

var (
	ErrNotFound = errors.New("session not found")

	// ErrTerminalState means a cancel or complete mark matched nothing
	// because the session is already cancelled or completed.
	ErrTerminalState = errors.New("session already in a terminal state")
)
