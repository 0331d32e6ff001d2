package storage

import "errors"

// Error taxonomy for store and profile operations. Callers classify with
// errors.Is and map to their own surface (HTTP status, inline notice).
var (
	// ErrValidation: malformed input such as empty content or a
	// self-addressed send.
	ErrValidation = errors.New("validation failed")

	// ErrAuth: the caller tried to act outside their own identity.
	ErrAuth = errors.New("not permitted")

	// ErrNotFound: the target user or profile does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrTransport: the backing store or channel could not be reached.
	ErrTransport = errors.New("transport failure")
)
