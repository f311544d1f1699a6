// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/sdk layers.
var (
	// ErrNotFound indicates the requested entity does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (group or document id collision).
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict indicates a write raced another writer of the same record.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates the caller could not be authenticated.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAccessDenied indicates an authenticated caller lacks the grant or role for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrRateLimited indicates temporary lock of identity-assertion calls.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidArgument indicates a request the backend refused as malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout indicates the configured operation timeout elapsed.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")
)
