package repositories

import (
	"context"

	"github.com/kitahara/bunko/internal/entities"
)

// MembershipRepository defines data access for collection_books rows
type MembershipRepository interface {
	// Add inserts a membership row recording the adding user.
	// Returns ErrAlreadyMember if the pair already exists.
	Add(ctx context.Context, collectionID, bookID, addedBy int64) error

	// Remove deletes the membership row.
	// Returns ErrNotMember if the pair does not exist.
	Remove(ctx context.Context, collectionID, bookID int64) error

	// GetAdder retrieves the recorded adder of the row, nil if the
	// adding account was since deleted.
	// Returns ErrNotMember if the pair does not exist.
	GetAdder(ctx context.Context, collectionID, bookID int64) (*int64, error)

	// Exists reports whether the book is in the collection
	Exists(ctx context.Context, collectionID, bookID int64) (bool, error)

	// ListByCollection retrieves membership rows joined with book and
	// adder details, ordered by added_at descending. The ordering is a
	// contract: callers build "recently added" views from it.
	ListByCollection(ctx context.Context, collectionID int64) ([]*entities.Membership, error)

	// Contributors counts membership rows per adding user, most
	// prolific first
	Contributors(ctx context.Context, collectionID int64, limit int) ([]entities.ContributorStat, error)
}

// UserRepository is the read-only view into the identity provider's
// users relation. The engine never authenticates credentials; it only
// checks that grant targets exist.
type UserRepository interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// BookRepository is the read-only view into the document catalog.
// Membership inserts verify the book exists first.
type BookRepository interface {
	Exists(ctx context.Context, bookID int64) (bool, error)
}
