package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/repositories"
)

// PostgresGrantRepository implements GrantRepository using PostgreSQL
type PostgresGrantRepository struct {
	q Querier
}

// NewPostgresGrantRepository creates a new PostgreSQL grant repository
func NewPostgresGrantRepository(q Querier) repositories.GrantRepository {
	return &PostgresGrantRepository{q: q}
}

// Upsert inserts the grant or replaces the existing row for the pair.
// Replaying a grant at the same level is idempotent: one row remains.
func (r *PostgresGrantRepository) Upsert(ctx context.Context, grant *entities.Grant) error {
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("invalid grant: %w", err)
	}

	query := `
		INSERT INTO collection_permissions (collection_id, user_id, permission_type, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (collection_id, user_id)
		DO UPDATE SET
			permission_type = EXCLUDED.permission_type,
			granted_by = EXCLUDED.granted_by,
			granted_at = NOW()
	`
	_, err := r.q.ExecContext(ctx, query,
		grant.CollectionID, grant.UserID, grant.Permission.String(), grant.GrantedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", wrapErr(err))
	}

	return nil
}

// Delete removes the grant row for the pair
func (r *PostgresGrantRepository) Delete(ctx context.Context, collectionID, userID int64) error {
	query := `
		DELETE FROM collection_permissions
		WHERE collection_id = $1 AND user_id = $2
	`
	result, err := r.q.ExecContext(ctx, query, collectionID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", wrapErr(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", wrapErr(err))
	}
	if affected == 0 {
		return repositories.ErrNoGrant
	}

	return nil
}

// GetLevel retrieves the granted level for the pair. A stored level
// that does not parse is an error, not a default.
func (r *PostgresGrantRepository) GetLevel(ctx context.Context, collectionID, userID int64) (entities.Permission, error) {
	query := `
		SELECT permission_type FROM collection_permissions
		WHERE collection_id = $1 AND user_id = $2
	`
	var stored string
	err := r.q.QueryRowContext(ctx, query, collectionID, userID).Scan(&stored)
	if err == sql.ErrNoRows {
		return 0, repositories.ErrNoGrant
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get grant level: %w", wrapErr(err))
	}

	level, err := entities.ParsePermission(stored)
	if err != nil {
		return 0, fmt.Errorf("corrupt grant for collection %d user %d: %w", collectionID, userID, err)
	}

	return level, nil
}

// ListByCollection retrieves all grants with grantee and granter
// usernames, newest grant first
func (r *PostgresGrantRepository) ListByCollection(ctx context.Context, collectionID int64) ([]*entities.Grant, error) {
	query := `
		SELECT cp.collection_id, cp.user_id, u.username, cp.permission_type,
		       COALESCE(cp.granted_by, 0), COALESCE(gb.username, ''), cp.granted_at
		FROM collection_permissions cp
		JOIN users u ON cp.user_id = u.id
		LEFT JOIN users gb ON cp.granted_by = gb.id
		WHERE cp.collection_id = $1
		ORDER BY cp.granted_at DESC
	`
	rows, err := r.q.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", wrapErr(err))
	}
	defer rows.Close()

	var grants []*entities.Grant
	for rows.Next() {
		grant := &entities.Grant{}
		var stored string
		if err := rows.Scan(
			&grant.CollectionID, &grant.UserID, &grant.Username, &stored,
			&grant.GrantedBy, &grant.GrantedByUsername, &grant.GrantedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", wrapErr(err))
		}

		level, err := entities.ParsePermission(stored)
		if err != nil {
			return nil, fmt.Errorf("corrupt grant for collection %d user %d: %w", grant.CollectionID, grant.UserID, err)
		}
		grant.Permission = level

		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grants: %w", wrapErr(err))
	}

	return grants, nil
}
