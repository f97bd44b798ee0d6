package core

import "errors"

var (
	// ErrUnauthorized is returned when the permission predicate denies the caller.
	// Nothing has been read or written.
	ErrUnauthorized = errors.New("not authorized to run imports")

	// ErrSourceExhausted signals that the requested window starts past the last
	// row. Driving clients treat it as completion, not failure.
	ErrSourceExhausted = errors.New("source exhausted")

	// ErrImporterRejected is returned by importers that decline a row. The
	// executor absorbs it and counts the row as rejected.
	ErrImporterRejected = errors.New("row rejected by importer")

	// ErrStoreUnavailable wraps progress store failures. The step may be retried
	// with the same step index.
	ErrStoreUnavailable = errors.New("progress store unavailable")

	// ErrInvalidStep is returned for a negative step index or non-positive step size.
	ErrInvalidStep = errors.New("invalid step")

	// ErrUnknownEntity is returned when no importer is registered for an entity.
	ErrUnknownEntity = errors.New("unknown import entity")

	// ErrStepInProgress is returned when a step for the same batch is already running.
	ErrStepInProgress = errors.New("step already in progress for batch")

	// ErrTooManySteps is returned when all step slots are busy and the wait expires.
	ErrTooManySteps = errors.New("too many concurrent import steps, please try again later")
)

// IsRetryable reports whether re-invoking the same step may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStepInProgress) ||
		errors.Is(err, ErrTooManySteps)
}
