package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// Validation errors: caller-input problems detected before any I/O.

	// ErrInvalidPath indicates a path failed safety validation.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidID indicates a malformed or nil document identifier.
	ErrInvalidID = errors.New("invalid document id")

	// ErrInvalidTitle indicates an empty or oversized title.
	ErrInvalidTitle = errors.New("invalid title")

	// ErrInvalidSize indicates a zero, negative, or oversized byte count.
	ErrInvalidSize = errors.New("invalid size")

	// ErrInvalidTimestamp indicates a non-positive or far-future timestamp.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrInvalidTag indicates a tag failed validation.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidQuery indicates a malformed search query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrMissingField indicates a builder was finalised without a required field.
	ErrMissingField = errors.New("missing required field")

	// Logical errors: legitimate outcomes of valid requests against
	// current state.

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePath indicates a live document already uses the path.
	ErrDuplicatePath = errors.New("duplicate path")

	// ErrDuplicateKey indicates an index key is already present.
	ErrDuplicateKey = errors.New("duplicate key")

	// Integrity errors: fatal, never retried.

	// ErrCorrupted indicates a checksum mismatch or unreadable on-disk state.
	// Retrying cannot fix corrupted data.
	ErrCorrupted = errors.New("corrupted storage")

	// ErrStorageInUse indicates another engine instance owns the data directory.
	ErrStorageInUse = errors.New("storage directory in use")

	// Transient errors: retried with backoff by the retry wrapper.

	// ErrTransient marks a failure class that is safe to retry.
	// Infrastructure wraps timeouts and flaky I/O with this sentinel.
	ErrTransient = errors.New("transient failure")

	// ErrUnavailable indicates retries were exhausted without success.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrTimeout indicates the caller's deadline expired before the
	// operation completed.
	ErrTimeout = errors.New("operation timed out")

	// ErrContractViolation indicates a precondition check failed at a
	// wrapper boundary.
	ErrContractViolation = errors.New("contract violation")
)

// validationErrors is the closed set used by IsValidation.
var validationErrors = []error{
	ErrInvalidPath,
	ErrInvalidID,
	ErrInvalidTitle,
	ErrInvalidSize,
	ErrInvalidTimestamp,
	ErrInvalidTag,
	ErrInvalidQuery,
	ErrMissingField,
	ErrContractViolation,
}

// IsValidation reports whether err is a caller-input validation failure.
// Validation failures are terminal and must never be retried.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is safe to retry.
// Corruption is checked first: a corrupted read that also carries an I/O
// error must never be retried.
func IsTransient(err error) bool {
	if err == nil || IsCorruption(err) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

// IsCorruption reports whether err indicates unrecoverable on-disk damage.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorrupted)
}
