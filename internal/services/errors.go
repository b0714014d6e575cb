package services

import "errors"

// Service-level sentinel errors. Together with the storage sentinels
// in the repositories package they form the engine's error taxonomy.
//
// Callers at the HTTP boundary must surface ErrForbidden and
// repositories.ErrNotFound identically (a generic "not accessible") so
// private collection IDs cannot be enumerated; internally they stay
// distinct so logs record what actually happened.
var (
	// ErrForbidden indicates the acting user lacks the required
	// effective permission
	ErrForbidden = errors.New("permission denied")

	// ErrInvalidInput indicates malformed request data
	ErrInvalidInput = errors.New("invalid input")

	// ErrOwnerImmutable indicates an attempt to grant or revoke
	// against the collection owner, whose rights are implicit
	ErrOwnerImmutable = errors.New("owner permissions are implicit and cannot be changed")

	// ErrNoSuchUser indicates the grant target does not exist
	ErrNoSuchUser = errors.New("user does not exist")

	// ErrNoSuchBook indicates the book is not in the catalog
	ErrNoSuchBook = errors.New("book does not exist")
)
