package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes in the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the first admin account when the store is empty.
// The generated password is logged once and must be changed immediately.
// Returns the password, or "" when seeding was skipped.
func SeedAdmin(ctx context.Context, store CredentialStore, email, name string, logger *slog.Logger) (string, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	email = NormaliseEmail(email)
	if email == "" {
		return "", fmt.Errorf("seed admin email is empty")
	}

	raw := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(raw); err != nil { //nolint:govet // shadow
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(raw)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
	}
	if err := store.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"email", email,
		"initial_password", password,
		"action_required", "change this password immediately",
	)
	return password, nil
}
