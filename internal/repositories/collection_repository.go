package repositories

import (
	"context"

	"github.com/kitahara/bunko/internal/entities"
)

// CollectionAccess is the minimal state the permission resolver reads
type CollectionAccess struct {
	OwnerID  int64
	IsPublic bool
}

// CollectionRepository defines data access for collection records
type CollectionRepository interface {
	// Create inserts a new collection and returns its ID
	Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (int64, error)

	// GetByID retrieves a collection with owner username, book count,
	// and the full member book ID list ordered newest first.
	// Returns ErrNotFound if the collection does not exist.
	GetByID(ctx context.Context, id int64) (*entities.Collection, error)

	// GetAccess retrieves the owner and visibility flag.
	// Returns ErrNotFound if the collection does not exist.
	GetAccess(ctx context.Context, id int64) (*CollectionAccess, error)

	// NameTaken reports whether the owner already has a collection with
	// the given name, excluding excludeID (0 to exclude nothing).
	NameTaken(ctx context.Context, ownerID int64, name string, excludeID int64) (bool, error)

	// Update applies the non-nil patch fields and bumps updated_at.
	// Returns ErrNotFound if the collection does not exist.
	Update(ctx context.Context, id int64, patch *entities.CollectionPatch) error

	// Touch bumps updated_at; membership mutations call this so that
	// discovery ordering reflects recent activity
	Touch(ctx context.Context, id int64) error

	// Delete removes the collection row. Grant and membership rows are
	// removed by cascade in the same transaction.
	// Returns ErrNotFound if the collection does not exist.
	Delete(ctx context.Context, id int64) error

	// ListByOwner retrieves collections owned by the user, any
	// visibility, ordered by updated_at descending
	ListByOwner(ctx context.Context, ownerID int64) ([]*entities.Collection, error)

	// ListAccessible retrieves the de-duplicated union of owned, public,
	// and explicitly granted collections; owned first, then by
	// updated_at descending. Previews are capped at previewLimit IDs.
	ListAccessible(ctx context.Context, userID int64, previewLimit int) ([]*entities.Collection, error)

	// ListPublic retrieves public collections ordered by created_at
	// descending with limit/offset pagination
	ListPublic(ctx context.Context, limit, offset, previewLimit int) ([]*entities.Collection, error)

	// Search matches the pattern case-insensitively against name and
	// description. publicOnly restricts the scope to public collections;
	// otherwise the accessible set of userID is searched.
	Search(ctx context.Context, pattern string, userID int64, publicOnly bool, limit, previewLimit int) ([]*entities.Collection, error)

	// Stats aggregates collection contents for reporting.
	// Returns ErrNotFound if the collection does not exist.
	Stats(ctx context.Context, id int64) (*entities.CollectionStats, error)
}
