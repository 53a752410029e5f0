package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newStoreWithMock(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return NewSQLiteStore(db), mock
}

func TestSQLiteStoreMock_RevokeSessionRollsBackOnBlacklistFailure(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*NULL`).
		WithArgs(sqlmock.AnyArg(), "usr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+OR\s+IGNORE\s+INTO\s+token_blacklist`).
		WithArgs("usr-1", "hash", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := store.RevokeSession(context.Background(), "usr-1", "hash")
	if err == nil {
		t.Fatal("RevokeSession() expected error")
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Errorf("RevokeSession() error = %v, should not look like a missing user", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteStoreMock_RevokeSessionMissingUserRollsBack(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*NULL`).
		WithArgs(sqlmock.AnyArg(), "usr-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.RevokeSession(context.Background(), "usr-gone", "hash")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("RevokeSession() error = %v, want ErrUserNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteStoreMock_RevokeSessionCommitFailure(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+OR\s+IGNORE`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	if err := store.RevokeSession(context.Background(), "usr-1", "hash"); err == nil {
		t.Fatal("RevokeSession() expected commit error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteStoreMock_SwapRefreshTokenExecError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\?.*refresh_token_hash\s+IS\s+\?`).
		WithArgs("next", sqlmock.AnyArg(), "usr-1", "prev").
		WillReturnError(errors.New("db down"))

	err := store.SwapRefreshToken(context.Background(), "usr-1", "prev", "next")
	if err == nil || errors.Is(err, ErrRefreshConflict) || errors.Is(err, ErrUserNotFound) {
		t.Errorf("SwapRefreshToken() error = %v, want wrapped driver error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteStoreMock_SwapRefreshTokenConflict(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE\s+users`).
		WithArgs("next", sqlmock.AnyArg(), "usr-1", "prev").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT\s+1\s+FROM\s+users\s+WHERE\s+id\s*=\s*\?`).
		WithArgs("usr-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	err := store.SwapRefreshToken(context.Background(), "usr-1", "prev", "next")
	if !errors.Is(err, ErrRefreshConflict) {
		t.Errorf("SwapRefreshToken() error = %v, want ErrRefreshConflict", err)
	}
}

func TestSQLiteStoreMock_FindIdentityQueryError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)SELECT.*EXISTS.*token_blacklist.*FROM\s+users\s+u\s+WHERE\s+u\.id\s*=\s*\?`).
		WithArgs("hash", "usr-1").
		WillReturnError(sql.ErrConnDone)

	_, _, err := store.FindIdentity(context.Background(), "usr-1", "hash")
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("FindIdentity() error = %v, want wrapped sql.ErrConnDone", err)
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Error("driver failure must not be reported as a missing user")
	}
}

func TestSQLiteStoreMock_FindByIDUnknownRole(t *testing.T) {
	store, mock := newStoreWithMock(t)

	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "role", "phone", "company", "address",
		"refresh_token_hash", "last_login_at", "created_at", "updated_at",
	}).AddRow("usr-1", "N", "n@example.com", "h", "owner", nil, nil, nil, nil, nil,
		"2026-03-01T12:00:00Z", "2026-03-01T12:00:00Z")
	mock.ExpectQuery(`SELECT\s+id,\s*name`).WithArgs("usr-1").WillReturnRows(rows)

	if _, err := store.FindByID(context.Background(), "usr-1"); err == nil {
		t.Error("FindByID() should reject a stored role outside the known set")
	}
}

func TestSQLiteStoreMock_CountError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)\s+FROM\s+users`).WillReturnError(errors.New("boom"))

	if _, err := store.Count(context.Background()); err == nil {
		t.Error("Count() expected error")
	}
}
