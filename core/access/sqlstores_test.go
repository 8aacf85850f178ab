package access

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinal-tech/spinal/core/csql"
)

func newSQLTokenStore(t *testing.T) (*SQLTokenStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`CREATE table IF NOT EXISTS basic\."_token_"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewSQLTokenStore(csql.NewWithSchema(db, "basic"), nil)
	require.NoError(t, err)
	return store, mock
}

func TestSQLTokenStoreIssue(t *testing.T) {
	store, mock := newSQLTokenStore(t)
	expireAt := time.Now().Add(time.Hour)

	mock.ExpectExec(`INSERT INTO basic\."_token_"`).
		WithArgs(sqlmock.AnyArg(), expireAt, "owner-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	token, err := store.Issue(context.Background(), &Owner{ID: "owner-1"}, expireAt)
	require.NoError(t, err)
	assert.Regexp(t, `^[a-f0-9]{32}$`, token.Code)
	assert.Equal(t, "owner-1", token.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTokenStoreResolve(t *testing.T) {
	store, mock := newSQLTokenStore(t)
	code := GenerateCode()
	expireAt := time.Now().Add(time.Hour)

	mock.ExpectQuery(`SELECT expire_at, owner_id FROM basic\."_token_"`).
		WithArgs(code).
		WillReturnRows(sqlmock.NewRows([]string{"expire_at", "owner_id"}).
			AddRow(expireAt, "owner-1"))

	token, owner, err := store.Resolve(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, code, token.Code)
	assert.Equal(t, "owner-1", owner.ID)
	assert.Nil(t, owner.Record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTokenStoreResolveUnknown(t *testing.T) {
	store, mock := newSQLTokenStore(t)
	code := GenerateCode()

	mock.ExpectQuery(`SELECT expire_at, owner_id FROM basic\."_token_"`).
		WithArgs(code).
		WillReturnError(csql.ErrNoRows)

	_, _, err := store.Resolve(context.Background(), code)
	assert.Equal(t, ErrTokenNotFound, err)
}

func TestSQLTokenStoreResolveLoadsOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectExec(`CREATE table IF NOT EXISTS basic\."_token_"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewSQLTokenStore(csql.NewWithSchema(db, "basic"),
		func(ctx context.Context, ownerID string) (map[string]any, error) {
			return map[string]any{"user_id": ownerID, "name": "alice"}, nil
		})
	require.NoError(t, err)

	code := GenerateCode()
	mock.ExpectQuery(`SELECT expire_at, owner_id FROM basic\."_token_"`).
		WithArgs(code).
		WillReturnRows(sqlmock.NewRows([]string{"expire_at", "owner_id"}).
			AddRow(time.Now().Add(time.Hour), "owner-1"))

	_, owner, err := store.Resolve(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner.Record["name"])
}

func TestSQLTokenStoreRefreshAndRevoke(t *testing.T) {
	store, mock := newSQLTokenStore(t)
	code := GenerateCode()
	expireAt := time.Now().Add(time.Hour)

	mock.ExpectExec(`UPDATE basic\."_token_" SET expire_at`).
		WithArgs(code, expireAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Refresh(context.Background(), code, expireAt))

	mock.ExpectExec(`DELETE FROM basic\."_token_"`).
		WithArgs(code).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Revoke(context.Background(), code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newSQLRoleStore(t *testing.T) (*SQLRoleStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`CREATE table IF NOT EXISTS basic\."_role_"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewSQLRoleStore(csql.NewWithSchema(db, "basic"))
	require.NoError(t, err)
	return store, mock
}

func TestSQLRoleStoreAdd(t *testing.T) {
	store, mock := newSQLRoleStore(t)

	// find-or-create: the insert is guarded by a NOT EXISTS subquery
	mock.ExpectExec(`INSERT INTO basic\."_role_".*WHERE NOT EXISTS`).
		WithArgs("admin", "owner-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Add(context.Background(), "owner-1", "admin"))

	// the second add matches the guard and inserts nothing
	mock.ExpectExec(`INSERT INTO basic\."_role_".*WHERE NOT EXISTS`).
		WithArgs("admin", "owner-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Add(context.Background(), "owner-1", "admin"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRoleStoreRemove(t *testing.T) {
	store, mock := newSQLRoleStore(t)

	mock.ExpectExec(`DELETE FROM basic\."_role_" WHERE ctid IN`).
		WithArgs("admin", "owner-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Remove(context.Background(), "owner-1", "admin"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRoleStoreHas(t *testing.T) {
	store, mock := newSQLRoleStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM basic\."_role_"`).
		WithArgs("admin", "owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	has, err := store.Has(context.Background(), "owner-1", "admin")
	require.NoError(t, err)
	assert.True(t, has)

	mock.ExpectQuery(`SELECT count\(\*\) FROM basic\."_role_"`).
		WithArgs("auditor", "owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	has, err = store.Has(context.Background(), "owner-1", "auditor")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLRoleStoreHasAll(t *testing.T) {
	store, mock := newSQLRoleStore(t)

	// the duplicate collapses, the distinct count must reach 2
	mock.ExpectQuery(`SELECT count\(DISTINCT code\) FROM basic\."_role_"`).
		WithArgs("owner-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	has, err := store.HasAll(context.Background(), "owner-1",
		[]string{"admin", "auditor", "admin"})
	require.NoError(t, err)
	assert.True(t, has)

	mock.ExpectQuery(`SELECT count\(DISTINCT code\) FROM basic\."_role_"`).
		WithArgs("owner-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	has, err = store.HasAll(context.Background(), "owner-1",
		[]string{"admin", "auditor"})
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLRoleStoreHasAllEmpty(t *testing.T) {
	store, _ := newSQLRoleStore(t)
	has, err := store.HasAll(context.Background(), "owner-1", nil)
	require.NoError(t, err)
	assert.True(t, has)
}
