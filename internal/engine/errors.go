package engine

import "errors"

// Common engine errors
var (
	// ErrWorkOrderNotFound is returned when the target work order is not
	// in the local cache
	ErrWorkOrderNotFound = errors.New("work order not found")

	// ErrUserContextRequired is returned when a command is issued without
	// an authenticated identity on the context
	ErrUserContextRequired = errors.New("user context required")

	// ErrEmptyPatch is returned for an update that changes no fields
	ErrEmptyPatch = errors.New("update contains no field changes")

	// ErrInvalidInput is returned when command-local validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrRemoteRejected is returned when the remote store rejected a
	// mutation terminally (never queued: it would retry forever)
	ErrRemoteRejected = errors.New("remote store rejected the change")
)
