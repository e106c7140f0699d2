package rbac_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

var (
	hasGrantSQL           = regexp.QuoteMeta(`FROM user_roles ur JOIN permissions p ON p.role_id = ur.role_id JOIN resources r ON r.id = p.resource_id JOIN actions a ON a.id = p.action_id WHERE ur.user_id = $1 AND r.name = $2 AND a.name = $3`)
	insertAssignmentSQL   = regexp.QuoteMeta(`INSERT INTO user_roles (user_id, role_id, assigned_at, assigned_by) VALUES ($1, $2, $3, $4) ON CONFLICT (user_id, role_id) DO NOTHING RETURNING id, assigned_at, assigned_by`)
	existingAssignmentSQL = regexp.QuoteMeta(`WHERE ur.user_id = $1 AND ur.role_id = $2`)
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *rbac.PGStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock, rbac.NewPGStore(mock)
}

func insertedRow(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mock.NewRows([]string{"id", "assigned_at", "assigned_by"})
}

func existingRow(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mock.NewRows([]string{"id", "user_id", "role_id", "name", "assigned_at", "assigned_by"})
}

func TestPGStoreHasGrantRunsSingleExistenceQuery(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(7), "posts", "read").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(hasGrantSQL).
		WithArgs(int64(7), "posts", "delete").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := store.HasGrant(context.Background(), 7, "posts", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasGrant(context.Background(), 7, "posts", "delete")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPGStoreHasGrantSurfacesQueryErrors(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery(hasGrantSQL).
		WithArgs(int64(7), "posts", "read").
		WillReturnError(assert.AnError)

	ok, err := store.HasGrant(context.Background(), 7, "posts", "read")
	assert.False(t, ok)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPGStoreInsertAssignment(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	earlier := at.Add(-time.Hour)
	admin := int64(1)
	other := int64(2)

	t.Run("created", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectQuery(insertAssignmentSQL).
			WithArgs(int64(7), int64(3), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(insertedRow(mock).AddRow(int64(10), at, &admin))

		a, created, err := store.InsertAssignment(context.Background(), 7, 3, &admin, at)
		require.NoError(t, err)
		assert.True(t, created)
		assert.EqualValues(t, 10, a.ID)
		require.NotNil(t, a.AssignedBy)
		assert.Equal(t, admin, *a.AssignedBy)
	})

	t.Run("conflict keeps existing row", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectQuery(insertAssignmentSQL).
			WithArgs(int64(7), int64(3), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(insertedRow(mock))
		mock.ExpectQuery(existingAssignmentSQL).
			WithArgs(int64(7), int64(3)).
			WillReturnRows(existingRow(mock).AddRow(int64(4), int64(7), int64(3), "editor", earlier, &other))

		a, created, err := store.InsertAssignment(context.Background(), 7, 3, &admin, at)
		require.NoError(t, err)
		assert.False(t, created)
		assert.EqualValues(t, 4, a.ID)
		assert.True(t, earlier.Equal(a.AssignedAt))
		require.NotNil(t, a.AssignedBy)
		assert.Equal(t, other, *a.AssignedBy)
	})

	t.Run("conflicting row removed before read-back", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectQuery(insertAssignmentSQL).
			WithArgs(int64(7), int64(3), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(insertedRow(mock))
		mock.ExpectQuery(existingAssignmentSQL).
			WithArgs(int64(7), int64(3)).
			WillReturnRows(existingRow(mock))
		mock.ExpectQuery(insertAssignmentSQL).
			WithArgs(int64(7), int64(3), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(insertedRow(mock).AddRow(int64(11), at, &admin))

		a, created, err := store.InsertAssignment(context.Background(), 7, 3, &admin, at)
		require.NoError(t, err)
		assert.True(t, created)
		assert.EqualValues(t, 11, a.ID)
	})

	t.Run("row keeps flipping", func(t *testing.T) {
		mock, store := newMockStore(t)
		for i := 0; i < 2; i++ {
			mock.ExpectQuery(insertAssignmentSQL).
				WithArgs(int64(7), int64(3), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnRows(insertedRow(mock))
			mock.ExpectQuery(existingAssignmentSQL).
				WithArgs(int64(7), int64(3)).
				WillReturnRows(existingRow(mock))
		}

		_, created, err := store.InsertAssignment(context.Background(), 7, 3, &admin, at)
		assert.False(t, created)
		assert.ErrorIs(t, err, rbac.ErrStoreFault)
		assert.NotErrorIs(t, err, rbac.ErrNotFound)
	})

	t.Run("unknown user or role", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectQuery(insertAssignmentSQL).
			WithArgs(int64(7), int64(99), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		_, _, err := store.InsertAssignment(context.Background(), 7, 99, nil, at)
		assert.ErrorIs(t, err, rbac.ErrNotFound)
	})
}

func TestPGStoreCreateGrantDuplicate(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO permissions (role_id, resource_id, action_id) VALUES ($1, $2, $3) RETURNING id`)).
		WithArgs(int64(3), int64(1), int64(2)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.CreateGrant(context.Background(), 3, 1, 2)
	assert.ErrorIs(t, err, rbac.ErrDuplicateGrant)
}
