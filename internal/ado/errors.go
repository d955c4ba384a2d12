package ado

import "errors"

var (
	// ErrNotFound indicates the remote resource does not exist or is not
	// visible to the caller. Best-effort enrichment callers treat this as
	// "no data available".
	ErrNotFound = errors.New("remote resource not found")

	// ErrPermission indicates the remote rejected the call with an
	// authorization failure.
	ErrPermission = errors.New("remote permission denied")

	// ErrRevisionConflict indicates a patch was rejected because the
	// revision precondition no longer matched. Never retried
	// automatically: a blind retry could overwrite a concurrent edit.
	ErrRevisionConflict = errors.New("work item revision conflict")

	// ErrUnavailable indicates the platform could not be reached.
	ErrUnavailable = errors.New("platform unavailable")
)
