package socialsecurity

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultSettings())

	settings, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)

	custom := Settings{IncludeWithTreaty: true, IncludeWithoutTreaty: false}
	require.NoError(t, store.Save(ctx, " alice ", custom))

	settings, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, custom, settings)

	settings, err = store.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db, DefaultSettings(), nil), mock
}

func TestSQLStoreGet(t *testing.T) {
	columns := []string{"include_with_treaty", "include_without_treaty"}

	t.Run("stored row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(selectSettingsQuery).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(true, false))

		settings, err := store.Get(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, Settings{IncludeWithTreaty: true, IncludeWithoutTreaty: false}, settings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row yields defaults", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(selectSettingsQuery).
			WithArgs("bob").
			WillReturnRows(sqlmock.NewRows(columns))

		settings, err := store.Get(context.Background(), "bob")
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), settings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(selectSettingsQuery).
			WithArgs("carol").
			WillReturnError(errors.New("connection refused"))

		settings, err := store.Get(context.Background(), "carol")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, DefaultSettings(), settings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLStoreSave(t *testing.T) {
	t.Run("upsert", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(upsertSettingsQuery).
			WithArgs("alice", true, true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Save(context.Background(), "alice", Settings{IncludeWithTreaty: true, IncludeWithoutTreaty: true})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty user", func(t *testing.T) {
		store, mock := newMockStore(t)
		err := store.Save(context.Background(), "  ", DefaultSettings())
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(upsertSettingsQuery).
			WithArgs("alice", false, true).
			WillReturnError(errors.New("disk full"))

		err := store.Save(context.Background(), "alice", DefaultSettings())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestSQLStoreMigrate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(CreateTableStatement).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
