package repositories

import (
	"context"

	"github.com/kitahara/bunko/internal/entities"
)

// GrantRepository defines data access for permission grant rows
type GrantRepository interface {
	// Upsert inserts the grant or, if a row already exists for the
	// (collection, user) pair, replaces its level, granter, and
	// timestamp. A repeated grant at the same level is idempotent.
	Upsert(ctx context.Context, grant *entities.Grant) error

	// Delete removes the grant row for the pair.
	// Returns ErrNoGrant if no explicit row exists.
	Delete(ctx context.Context, collectionID, userID int64) error

	// GetLevel retrieves the granted level for the pair.
	// Returns ErrNoGrant if no explicit row exists, and an error if the
	// stored level string does not parse (fail closed on corrupt data).
	GetLevel(ctx context.Context, collectionID, userID int64) (entities.Permission, error)

	// ListByCollection retrieves all grants for the collection with
	// grantee and granter usernames, newest grant first
	ListByCollection(ctx context.Context, collectionID int64) ([]*entities.Grant, error)
}
