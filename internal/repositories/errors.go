package repositories

import "errors"

// Storage-level sentinel errors. Services translate these into their
// own taxonomy where the meaning differs per operation.
var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrNameConflict indicates a per-owner collection name collision
	ErrNameConflict = errors.New("collection name already exists for this owner")

	// ErrAlreadyMember indicates the book is already in the collection
	ErrAlreadyMember = errors.New("book is already in the collection")

	// ErrNotMember indicates the book is not in the collection
	ErrNotMember = errors.New("book is not in the collection")

	// ErrNoGrant indicates no explicit grant row exists for the pair
	ErrNoGrant = errors.New("no permission grant exists")

	// ErrTransient indicates a timeout, connectivity failure, or
	// serialization conflict; the caller may safely retry.
	ErrTransient = errors.New("transient storage error")
)

// IsRetryable reports whether the error is safe to retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
