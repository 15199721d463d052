package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrNotAuthenticated indicates a remote operation was attempted without a
	// session. Callers treat this as an expected state and keep working
	// against local data.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates divergent local and remote copies of an entity.
	ErrConflict = errors.New("sync conflict")
	// ErrForbidden indicates an operation the current plan does not allow.
	ErrForbidden = errors.New("forbidden")
)
