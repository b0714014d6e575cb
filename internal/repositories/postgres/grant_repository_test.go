package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitahara/bunko/internal/entities"
	"github.com/kitahara/bunko/internal/repositories"
)

func TestGrantRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO collection_permissions").
		WithArgs(int64(1), int64(2), "edit", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresGrantRepository(db)
	err = repo.Upsert(context.Background(), &entities.Grant{
		CollectionID: 1,
		UserID:       2,
		Permission:   entities.PermissionEdit,
		GrantedBy:    3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRepository_Upsert_InvalidGrant(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresGrantRepository(db)
	err = repo.Upsert(context.Background(), &entities.Grant{
		CollectionID: 1,
		UserID:       2,
		Permission:   entities.Permission(42),
	})
	require.Error(t, err)
}

func TestGrantRepository_Delete(t *testing.T) {
	t.Run("deletes existing grant", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("DELETE FROM collection_permissions").
			WithArgs(int64(1), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewPostgresGrantRepository(db)
		require.NoError(t, repo.Delete(context.Background(), 1, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent grant reports no grant", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("DELETE FROM collection_permissions").
			WithArgs(int64(1), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewPostgresGrantRepository(db)
		err = repo.Delete(context.Background(), 1, 2)
		assert.ErrorIs(t, err, repositories.ErrNoGrant)
	})
}

func TestGrantRepository_GetLevel(t *testing.T) {
	t.Run("returns stored level", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT permission_type FROM collection_permissions").
			WithArgs(int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"permission_type"}).AddRow("add_books"))

		repo := NewPostgresGrantRepository(db)
		level, err := repo.GetLevel(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, entities.PermissionAddBooks, level)
	})

	t.Run("no row reports no grant", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT permission_type FROM collection_permissions").
			WithArgs(int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"permission_type"}))

		repo := NewPostgresGrantRepository(db)
		_, err = repo.GetLevel(context.Background(), 1, 2)
		assert.ErrorIs(t, err, repositories.ErrNoGrant)
	})

	t.Run("unparseable stored level fails closed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT permission_type FROM collection_permissions").
			WithArgs(int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"permission_type"}).AddRow("superuser"))

		repo := NewPostgresGrantRepository(db)
		_, err = repo.GetLevel(context.Background(), 1, 2)
		require.Error(t, err)
		assert.NotErrorIs(t, err, repositories.ErrNoGrant)
	})
}

func TestGrantRepository_ListByCollection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"collection_id", "user_id", "username", "permission_type",
		"granted_by", "granted_by_username", "granted_at",
	}).
		AddRow(int64(1), int64(2), "bob", "edit", int64(9), "alice", now).
		AddRow(int64(1), int64(3), "carol", "view", int64(0), "", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT cp.collection_id, cp.user_id").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	repo := NewPostgresGrantRepository(db)
	grants, err := repo.ListByCollection(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, grants, 2)

	assert.Equal(t, "bob", grants[0].Username)
	assert.Equal(t, entities.PermissionEdit, grants[0].Permission)
	assert.Equal(t, "alice", grants[0].GrantedByUsername)

	// Granter account deleted: granted_by coalesces to 0, name to empty
	assert.Equal(t, int64(0), grants[1].GrantedBy)
	assert.Equal(t, "", grants[1].GrantedByUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRepository_ListByCollection_CorruptRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"collection_id", "user_id", "username", "permission_type",
		"granted_by", "granted_by_username", "granted_at",
	}).AddRow(int64(1), int64(2), "bob", "root", int64(0), "", time.Now())

	mock.ExpectQuery("SELECT cp.collection_id, cp.user_id").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	repo := NewPostgresGrantRepository(db)
	_, err = repo.ListByCollection(context.Background(), 1)
	require.Error(t, err)
}
