package postgres

import (
	"context"
	"fmt"

	"github.com/kitahara/bunko/internal/repositories"
)

// PostgresUserRepository is the read-only user directory lookup
type PostgresUserRepository struct {
	q Querier
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(q Querier) repositories.UserRepository {
	return &PostgresUserRepository{q: q}
}

// Exists reports whether the user exists
func (r *PostgresUserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", wrapErr(err))
	}

	return exists, nil
}

// PostgresBookRepository is the read-only book catalog lookup
type PostgresBookRepository struct {
	q Querier
}

// NewPostgresBookRepository creates a new PostgreSQL book repository
func NewPostgresBookRepository(q Querier) repositories.BookRepository {
	return &PostgresBookRepository{q: q}
}

// Exists reports whether the book exists
func (r *PostgresBookRepository) Exists(ctx context.Context, bookID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, bookID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check book existence: %w", wrapErr(err))
	}

	return exists, nil
}
