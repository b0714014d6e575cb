package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/repositories"
)

// PostgresMembershipRepository implements MembershipRepository using PostgreSQL
type PostgresMembershipRepository struct {
	q Querier
}

// NewPostgresMembershipRepository creates a new PostgreSQL membership repository
func NewPostgresMembershipRepository(q Querier) repositories.MembershipRepository {
	return &PostgresMembershipRepository{q: q}
}

// Add inserts a membership row recording the adding user
func (r *PostgresMembershipRepository) Add(ctx context.Context, collectionID, bookID, addedBy int64) error {
	query := `
		INSERT INTO collection_books (collection_id, book_id, added_at, added_by)
		VALUES ($1, $2, NOW(), $3)
	`
	if _, err := r.q.ExecContext(ctx, query, collectionID, bookID, addedBy); err != nil {
		return fmt.Errorf("failed to add book to collection: %w", wrapErr(err))
	}

	return nil
}

// Remove deletes the membership row
func (r *PostgresMembershipRepository) Remove(ctx context.Context, collectionID, bookID int64) error {
	query := `
		DELETE FROM collection_books
		WHERE collection_id = $1 AND book_id = $2
	`
	result, err := r.q.ExecContext(ctx, query, collectionID, bookID)
	if err != nil {
		return fmt.Errorf("failed to remove book from collection: %w", wrapErr(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", wrapErr(err))
	}
	if affected == 0 {
		return repositories.ErrNotMember
	}

	return nil
}

// GetAdder retrieves the recorded adder of the row, nil if the adding
// account was since deleted
func (r *PostgresMembershipRepository) GetAdder(ctx context.Context, collectionID, bookID int64) (*int64, error) {
	query := `
		SELECT added_by FROM collection_books
		WHERE collection_id = $1 AND book_id = $2
	`
	var addedBy sql.NullInt64
	err := r.q.QueryRowContext(ctx, query, collectionID, bookID).Scan(&addedBy)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership adder: %w", wrapErr(err))
	}

	if !addedBy.Valid {
		return nil, nil
	}
	return &addedBy.Int64, nil
}

// Exists reports whether the book is in the collection
func (r *PostgresMembershipRepository) Exists(ctx context.Context, collectionID, bookID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM collection_books
			WHERE collection_id = $1 AND book_id = $2
		)
	`
	var exists bool
	if err := r.q.QueryRowContext(ctx, query, collectionID, bookID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", wrapErr(err))
	}

	return exists, nil
}

// ListByCollection retrieves membership rows joined with book and adder
// details, ordered by added_at descending
func (r *PostgresMembershipRepository) ListByCollection(ctx context.Context, collectionID int64) ([]*entities.Membership, error) {
	query := `
		SELECT cb.collection_id, cb.book_id, b.title, COALESCE(b.author, ''), b.file_type,
		       cb.added_at, cb.added_by, COALESCE(u.username, '')
		FROM collection_books cb
		JOIN books b ON cb.book_id = b.id
		LEFT JOIN users u ON cb.added_by = u.id
		WHERE cb.collection_id = $1
		ORDER BY cb.added_at DESC
	`
	rows, err := r.q.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection books: %w", wrapErr(err))
	}
	defer rows.Close()

	var memberships []*entities.Membership
	for rows.Next() {
		membership := &entities.Membership{}
		var addedBy sql.NullInt64
		if err := rows.Scan(
			&membership.CollectionID, &membership.BookID, &membership.Title,
			&membership.Author, &membership.FileType, &membership.AddedAt,
			&addedBy, &membership.AddedByUsername,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", wrapErr(err))
		}
		if addedBy.Valid {
			membership.AddedBy = &addedBy.Int64
		}
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memberships: %w", wrapErr(err))
	}

	return memberships, nil
}

// Contributors counts membership rows per adding user, most prolific first
func (r *PostgresMembershipRepository) Contributors(ctx context.Context, collectionID int64, limit int) ([]entities.ContributorStat, error) {
	query := `
		SELECT COALESCE(u.username, ''), COUNT(*) AS books_added
		FROM collection_books cb
		LEFT JOIN users u ON cb.added_by = u.id
		WHERE cb.collection_id = $1
		GROUP BY u.username
		ORDER BY books_added DESC
		LIMIT $2
	`
	rows, err := r.q.QueryContext(ctx, query, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributors: %w", wrapErr(err))
	}
	defer rows.Close()

	var contributors []entities.ContributorStat
	for rows.Next() {
		var stat entities.ContributorStat
		if err := rows.Scan(&stat.Username, &stat.BooksAdded); err != nil {
			return nil, fmt.Errorf("failed to scan contributor: %w", wrapErr(err))
		}
		contributors = append(contributors, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read contributors: %w", wrapErr(err))
	}

	return contributors, nil
}
