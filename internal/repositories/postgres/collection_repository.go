package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/repositories"
)

// PostgresCollectionRepository implements CollectionRepository using PostgreSQL
type PostgresCollectionRepository struct {
	q Querier
}

// NewPostgresCollectionRepository creates a new PostgreSQL collection repository
func NewPostgresCollectionRepository(q Querier) repositories.CollectionRepository {
	return &PostgresCollectionRepository{q: q}
}

// collectionColumns is the shared SELECT list for collection queries:
// collection fields, owner username, and the membership row count.
const collectionColumns = `
	SELECT c.id, c.name, COALESCE(c.description, ''), c.owner_id, u.username,
	       c.is_public, c.created_at, c.updated_at,
	       COALESCE(book_count.count, 0) AS book_count
	FROM collections c
	JOIN users u ON c.owner_id = u.id
	LEFT JOIN (
		SELECT collection_id, COUNT(*) AS count
		FROM collection_books
		GROUP BY collection_id
	) book_count ON c.id = book_count.collection_id
`

// Create inserts a new collection and returns its ID
func (r *PostgresCollectionRepository) Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (int64, error) {
	query := `
		INSERT INTO collections (name, description, owner_id, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := r.q.QueryRowContext(ctx, query,
		name,
		sql.NullString{String: description, Valid: description != ""},
		ownerID,
		isPublic,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", wrapErr(err))
	}

	return id, nil
}

// GetByID retrieves a collection with owner username, book count, and
// the full member book ID list ordered newest first
func (r *PostgresCollectionRepository) GetByID(ctx context.Context, id int64) (*entities.Collection, error) {
	query := collectionColumns + ` WHERE c.id = $1`

	collection, err := r.scanCollection(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", wrapErr(err))
	}

	bookIDs, err := r.bookIDs(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	collection.BookIDs = bookIDs

	return collection, nil
}

// GetAccess retrieves the owner and visibility flag
func (r *PostgresCollectionRepository) GetAccess(ctx context.Context, id int64) (*repositories.CollectionAccess, error) {
	query := `SELECT owner_id, is_public FROM collections WHERE id = $1`

	access := &repositories.CollectionAccess{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(&access.OwnerID, &access.IsPublic)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection access: %w", wrapErr(err))
	}

	return access, nil
}

// NameTaken reports whether the owner already has a collection with the name
func (r *PostgresCollectionRepository) NameTaken(ctx context.Context, ownerID int64, name string, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM collections
			WHERE owner_id = $1 AND name = $2 AND id <> $3
		)
	`
	var taken bool
	if err := r.q.QueryRowContext(ctx, query, ownerID, name, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check collection name: %w", wrapErr(err))
	}

	return taken, nil
}

// Update applies the non-nil patch fields and bumps updated_at
func (r *PostgresCollectionRepository) Update(ctx context.Context, id int64, patch *entities.CollectionPatch) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1

	if patch.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *patch.Name)
		idx++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, sql.NullString{String: *patch.Description, Valid: *patch.Description != ""})
		idx++
	}
	if patch.IsPublic != nil {
		sets = append(sets, fmt.Sprintf("is_public = $%d", idx))
		args = append(args, *patch.IsPublic)
		idx++
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE collections SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", wrapErr(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", wrapErr(err))
	}
	if affected == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// Touch bumps updated_at so discovery ordering reflects recent activity
func (r *PostgresCollectionRepository) Touch(ctx context.Context, id int64) error {
	query := `UPDATE collections SET updated_at = NOW() WHERE id = $1`

	if _, err := r.q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to touch collection: %w", wrapErr(err))
	}

	return nil
}

// Delete removes the collection row; grant and membership rows cascade
func (r *PostgresCollectionRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM collections WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", wrapErr(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", wrapErr(err))
	}
	if affected == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// ListByOwner retrieves collections owned by the user, updated_at descending
func (r *PostgresCollectionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*entities.Collection, error) {
	query := collectionColumns + `
		WHERE c.owner_id = $1
		ORDER BY c.updated_at DESC
	`
	return r.queryCollections(ctx, query, 0, ownerID)
}

// ListAccessible retrieves the union of owned, public, and granted
// collections, owned first, then updated_at descending. The grants
// join yields at most one row per collection (unique on collection_id,
// user_id), so no DISTINCT is needed; DISTINCT would also reject the
// ORDER BY CASE expression, which is not in the select list.
func (r *PostgresCollectionRepository) ListAccessible(ctx context.Context, userID int64, previewLimit int) ([]*entities.Collection, error) {
	query := collectionColumns + `
		LEFT JOIN collection_permissions cp ON c.id = cp.collection_id AND cp.user_id = $1
		WHERE c.owner_id = $1
		   OR c.is_public = true
		   OR cp.user_id = $1
		ORDER BY
			CASE WHEN c.owner_id = $1 THEN 0 ELSE 1 END,
			c.updated_at DESC
	`
	return r.queryCollections(ctx, query, previewLimit, userID)
}

// ListPublic retrieves public collections, created_at descending, paginated
func (r *PostgresCollectionRepository) ListPublic(ctx context.Context, limit, offset, previewLimit int) ([]*entities.Collection, error) {
	query := collectionColumns + `
		WHERE c.is_public = true
		ORDER BY c.created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.queryCollections(ctx, query, previewLimit, limit, offset)
}

// Search matches the pattern case-insensitively against name and
// description. Each scope keeps the ordering of its listing: public
// follows ListPublic (created_at descending), accessible follows
// ListAccessible (owned first, then updated_at descending).
func (r *PostgresCollectionRepository) Search(ctx context.Context, pattern string, userID int64, publicOnly bool, limit, previewLimit int) ([]*entities.Collection, error) {
	if publicOnly {
		query := collectionColumns + `
			WHERE c.is_public = true
			  AND (LOWER(c.name) LIKE LOWER($1) OR LOWER(COALESCE(c.description, '')) LIKE LOWER($1))
			ORDER BY c.created_at DESC
			LIMIT $2
		`
		return r.queryCollections(ctx, query, previewLimit, pattern, limit)
	}

	// Same shape as ListAccessible: the grants join is unique per
	// collection, so plain SELECT with the CASE ordering is valid.
	query := collectionColumns + `
		LEFT JOIN collection_permissions cp ON c.id = cp.collection_id AND cp.user_id = $2
		WHERE (c.owner_id = $2 OR c.is_public = true OR cp.user_id = $2)
		  AND (LOWER(c.name) LIKE LOWER($1) OR LOWER(COALESCE(c.description, '')) LIKE LOWER($1))
		ORDER BY
			CASE WHEN c.owner_id = $2 THEN 0 ELSE 1 END,
			c.updated_at DESC
		LIMIT $3
	`
	return r.queryCollections(ctx, query, previewLimit, pattern, userID, limit)
}

// Stats aggregates collection contents for reporting. Contributor
// counts are filled in by the caller when the requester is entitled.
func (r *PostgresCollectionRepository) Stats(ctx context.Context, id int64) (*entities.CollectionStats, error) {
	query := `
		SELECT c.name, COALESCE(c.description, ''), u.username, c.created_at,
		       COALESCE(book_count.count, 0)
		FROM collections c
		JOIN users u ON c.owner_id = u.id
		LEFT JOIN (
			SELECT collection_id, COUNT(*) AS count
			FROM collection_books
			GROUP BY collection_id
		) book_count ON c.id = book_count.collection_id
		WHERE c.id = $1
	`
	stats := &entities.CollectionStats{FileTypes: map[string]int{}}
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&stats.Name, &stats.Description, &stats.OwnerUsername, &stats.CreatedAt, &stats.TotalBooks,
	)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection stats: %w", wrapErr(err))
	}

	typesQuery := `
		SELECT b.file_type, COUNT(*)
		FROM collection_books cb
		JOIN books b ON cb.book_id = b.id
		WHERE cb.collection_id = $1
		GROUP BY b.file_type
	`
	typeRows, err := r.q.QueryContext(ctx, typesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get file type counts: %w", wrapErr(err))
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var fileType string
		var count int
		if err := typeRows.Scan(&fileType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan file type count: %w", wrapErr(err))
		}
		stats.FileTypes[fileType] = count
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file type counts: %w", wrapErr(err))
	}

	recentQuery := `
		SELECT b.title, COALESCE(b.author, ''), cb.added_at, COALESCE(u.username, '')
		FROM collection_books cb
		JOIN books b ON cb.book_id = b.id
		LEFT JOIN users u ON cb.added_by = u.id
		WHERE cb.collection_id = $1
		ORDER BY cb.added_at DESC
		LIMIT 10
	`
	recentRows, err := r.q.QueryContext(ctx, recentQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent additions: %w", wrapErr(err))
	}
	defer recentRows.Close()

	for recentRows.Next() {
		var addition entities.RecentAddition
		if err := recentRows.Scan(&addition.Title, &addition.Author, &addition.AddedAt, &addition.AddedByUsername); err != nil {
			return nil, fmt.Errorf("failed to scan recent addition: %w", wrapErr(err))
		}
		stats.RecentAdditions = append(stats.RecentAdditions, addition)
	}
	if err := recentRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent additions: %w", wrapErr(err))
	}

	return stats, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresCollectionRepository) scanCollection(row rowScanner) (*entities.Collection, error) {
	collection := &entities.Collection{}
	err := row.Scan(
		&collection.ID, &collection.Name, &collection.Description,
		&collection.OwnerID, &collection.OwnerUsername, &collection.IsPublic,
		&collection.CreatedAt, &collection.UpdatedAt, &collection.BookCount,
	)
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// queryCollections runs a multi-row collection query and, when
// previewLimit > 0, attaches a bounded preview of member book IDs.
func (r *PostgresCollectionRepository) queryCollections(ctx context.Context, query string, previewLimit int, args ...interface{}) ([]*entities.Collection, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", wrapErr(err))
	}
	defer rows.Close()

	var collections []*entities.Collection
	for rows.Next() {
		collection, err := r.scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", wrapErr(err))
		}
		collections = append(collections, collection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read collections: %w", wrapErr(err))
	}

	if previewLimit > 0 {
		for _, collection := range collections {
			bookIDs, err := r.bookIDs(ctx, collection.ID, previewLimit)
			if err != nil {
				return nil, err
			}
			collection.BookIDs = bookIDs
		}
	}

	return collections, nil
}

// bookIDs retrieves member book IDs newest first; limit 0 means all
func (r *PostgresCollectionRepository) bookIDs(ctx context.Context, collectionID int64, limit int) ([]int64, error) {
	query := `
		SELECT book_id FROM collection_books
		WHERE collection_id = $1
		ORDER BY added_at DESC
	`
	args := []interface{}{collectionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection book IDs: %w", wrapErr(err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan book ID: %w", wrapErr(err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read book IDs: %w", wrapErr(err))
	}

	return ids, nil
}
