package ports

import "errors"

var (
	// ErrInFlight rejects a second submission of an action that is still running.
	ErrInFlight = errors.New("action already in progress")
	// ErrNotFound is returned when a contact or posting is not visible to the caller.
	ErrNotFound = errors.New("not found")
)
