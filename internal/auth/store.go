package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CredentialStore persists user accounts together with their session state:
// the hash of the single current refresh token and the set of revoked
// access token hashes.
//
// Tokens are passed as hashes (see HashToken); stores never see raw tokens.
type CredentialStore interface {
	// FindByID returns the full record, or ErrUserNotFound.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindIdentity loads the secret-free projection of a user and reports
	// whether accessTokenHash is on that user's blacklist, in one read.
	// Returns ErrUserNotFound when the user does not exist.
	FindIdentity(ctx context.Context, id, accessTokenHash string) (*Identity, bool, error)

	// FindByEmail returns the full record for a normalised email, or ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Create inserts a new user. ID and timestamps are generated when empty.
	// Returns ErrEmailExists on a duplicate email.
	Create(ctx context.Context, user *User) error

	// SwapRefreshToken replaces the stored refresh token hash with next only
	// if it still equals expected. Returns ErrRefreshConflict when another
	// writer got there first and ErrUserNotFound when the user is gone.
	SwapRefreshToken(ctx context.Context, id, expected, next string) error

	// StartSession unconditionally stores a new refresh token hash and
	// stamps the last login time.
	StartSession(ctx context.Context, id, refreshHash string, at time.Time) error

	// RevokeSession adds accessTokenHash to the blacklist and clears the
	// refresh token. Both changes apply or neither does.
	RevokeSession(ctx context.Context, id, accessTokenHash string) error

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// Count returns the number of accounts.
	Count(ctx context.Context) (int, error)
}

// newUserID returns a short prefixed identifier for a new account.
func newUserID() string {
	return "usr-" + uuid.NewString()[:8]
}
