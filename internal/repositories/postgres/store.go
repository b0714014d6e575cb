package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kitahara/bunko/internal/repositories"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories are bound to a Querier so the same implementation serves
// auto-commit reads and transactional check-then-act sequences.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements repositories.Store over PostgreSQL
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresStore creates a new PostgreSQL store. timeout bounds every
// transaction so no store call can hang its caller; 0 disables it.
func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

// Collections returns an auto-commit collection repository
func (s *PostgresStore) Collections() repositories.CollectionRepository {
	return NewPostgresCollectionRepository(s.db)
}

// Grants returns an auto-commit grant repository
func (s *PostgresStore) Grants() repositories.GrantRepository {
	return NewPostgresGrantRepository(s.db)
}

// Memberships returns an auto-commit membership repository
func (s *PostgresStore) Memberships() repositories.MembershipRepository {
	return NewPostgresMembershipRepository(s.db)
}

// Users returns the read-only user directory
func (s *PostgresStore) Users() repositories.UserRepository {
	return NewPostgresUserRepository(s.db)
}

// Books returns the read-only book catalog
func (s *PostgresStore) Books() repositories.BookRepository {
	return NewPostgresBookRepository(s.db)
}

// InTx runs fn inside a single repeatable-read transaction. The
// repositories handed to fn are bound to that transaction, so a
// permission check and the mutation it guards cannot be interleaved
// with a concurrent writer.
func (s *PostgresStore) InTx(ctx context.Context, fn func(repos repositories.RepoSet) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", wrapErr(err))
	}
	defer tx.Rollback()

	if err := fn(&txRepoSet{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", wrapErr(err))
	}

	return nil
}

// txRepoSet binds the repository bundle to one transaction
type txRepoSet struct {
	tx *sql.Tx
}

func (t *txRepoSet) Collections() repositories.CollectionRepository {
	return NewPostgresCollectionRepository(t.tx)
}

func (t *txRepoSet) Grants() repositories.GrantRepository {
	return NewPostgresGrantRepository(t.tx)
}

func (t *txRepoSet) Memberships() repositories.MembershipRepository {
	return NewPostgresMembershipRepository(t.tx)
}

func (t *txRepoSet) Users() repositories.UserRepository {
	return NewPostgresUserRepository(t.tx)
}

func (t *txRepoSet) Books() repositories.BookRepository {
	return NewPostgresBookRepository(t.tx)
}

// Constraint names from the migrations, used to map unique violations
// to the storage sentinels.
const (
	constraintOwnerName      = "collections_owner_name_key"
	constraintMembershipPair = "collection_books_pair_key"
)

// wrapErr maps driver errors onto the storage sentinels. Timeouts,
// connectivity failures, and serialization conflicts become
// ErrTransient so callers know a retry is safe.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", repositories.ErrTransient, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"57014", // query_canceled (statement timeout)
			"53300", // too_many_connections
			"08000", "08003", "08006": // connection failures
			return fmt.Errorf("%w: %v", repositories.ErrTransient, err)
		case "23505": // unique_violation
			switch pqErr.Constraint {
			case constraintOwnerName:
				return repositories.ErrNameConflict
			case constraintMembershipPair:
				return repositories.ErrAlreadyMember
			}
		}
	}

	return err
}
