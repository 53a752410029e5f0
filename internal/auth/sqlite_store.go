package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore implements CredentialStore on the users and token_blacklist tables.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed credential store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const userColumns = `id, name, email, password_hash, role, phone, company, address,
	refresh_token_hash, last_login_at, created_at, updated_at`

// FindByID retrieves the full user record.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// FindByEmail retrieves the full user record by email.
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (s *SQLiteStore) findOne(ctx context.Context, query string, arg string) (*User, error) {
	var (
		u                               User
		role                            string
		phone, company, address, rtHash sql.NullString
		lastLogin                       sql.NullString
		createdAt, updatedAt            string
	)

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role,
		&phone, &company, &address, &rtHash, &lastLogin,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if u.Role, err = ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.Phone = phone.String
	u.Company = company.String
	u.Address = address.String
	u.RefreshTokenHash = rtHash.String
	u.LastLogin = parseNullTime(lastLogin)
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)

	return &u, nil
}

// FindIdentity loads the projection and blacklist membership in one query.
func (s *SQLiteStore) FindIdentity(ctx context.Context, id, accessTokenHash string) (*Identity, bool, error) {
	var (
		ident                   Identity
		role                    string
		phone, company, address sql.NullString
		lastLogin               sql.NullString
		createdAt               string
		revoked                 int
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, u.role, u.phone, u.company, u.address,
		        u.last_login_at, u.created_at,
		        EXISTS (SELECT 1 FROM token_blacklist b WHERE b.user_id = u.id AND b.token_hash = ?)
		 FROM users u WHERE u.id = ?`,
		accessTokenHash, id,
	).Scan(
		&ident.ID, &ident.Name, &ident.Email, &role,
		&phone, &company, &address, &lastLogin, &createdAt, &revoked,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying identity: %w", err)
	}

	if ident.Role, err = ParseRole(role); err != nil {
		return nil, false, fmt.Errorf("user %s: %w", ident.ID, err)
	}
	ident.Phone = phone.String
	ident.Company = company.String
	ident.Address = address.String
	ident.LastLogin = parseNullTime(lastLogin)
	ident.CreatedAt = parseTime(createdAt)

	return &ident, revoked == 1, nil
}

// Create inserts a new user.
func (s *SQLiteStore) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = newUserID()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, phone, company, address,
		                    refresh_token_hash, last_login_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role),
		nullString(user.Phone), nullString(user.Company), nullString(user.Address),
		nullString(user.RefreshTokenHash), nullTime(user.LastLogin),
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// SwapRefreshToken performs a conditional update on refresh_token_hash.
// An empty expected value matches a cleared (NULL) token.
func (s *SQLiteStore) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash = ?, updated_at = ?
		 WHERE id = ? AND refresh_token_hash IS ?`,
		nullString(next), formatTime(time.Now().UTC()), id, nullString(expected),
	)
	if err != nil {
		return fmt.Errorf("swapping refresh token: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return ErrRefreshConflict
}

// StartSession overwrites the refresh token and stamps last_login_at.
func (s *SQLiteStore) StartSession(ctx context.Context, id, refreshHash string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash = ?, last_login_at = ?, updated_at = ? WHERE id = ?`,
		nullString(refreshHash), formatTime(at), formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	return requireOneRow(result)
}

// RevokeSession clears the refresh token and blacklists the access token
// inside one transaction.
func (s *SQLiteStore) RevokeSession(ctx context.Context, id, accessTokenHash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := formatTime(time.Now().UTC())

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash = NULL, updated_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}
	if err := requireOneRow(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO token_blacklist (user_id, token_hash, revoked_at) VALUES (?, ?, ?)`,
		id, accessTokenHash, now,
	); err != nil {
		return fmt.Errorf("blacklisting access token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing revoke: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the password hash.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	return requireOneRow(result)
}

// Count returns the number of users.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return true, nil
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// nullString returns nil for empty strings so they are stored as NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // written by formatTime
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
