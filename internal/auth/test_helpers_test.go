package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashara-studio/ashara-core/internal/infrastructure/config"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/database"
	_ "github.com/ashara-studio/ashara-core/migrations" // registers the schema
)

const (
	testAccessSecret  = "test-access-secret-at-least-32-chars!"
	testRefreshSecret = "test-refresh-secret-at-least-32-chars"
	testPassword      = "correct-horse-battery-staple"
)

// testDB opens a temp-file SQLite database with the production schema applied.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// fixedClock is a settable clock shared by issuer and service in tests.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func testIssuer(t *testing.T, opts ...IssuerOption) *TokenIssuer {
	t.Helper()

	issuer, err := NewTokenIssuer(testAccessSecret, testRefreshSecret, opts...)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	return issuer
}

// seedTestUser inserts a user with testPassword and returns it.
func seedTestUser(t testing.TB, store CredentialStore, email string, role Role) *User {
	t.Helper()

	hash, err := HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{
		Name:         "Test " + string(role),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}
