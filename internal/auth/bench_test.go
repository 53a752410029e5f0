package auth

import (
	"context"
	"log/slog"
	"testing"
)

// ─── Password hashing (Argon2id, deliberately slow) ─────────────────

func BenchmarkHashPassword(b *testing.B) {
	for b.Loop() {
		HashPassword(testPassword) //nolint:errcheck // benchmark
	}
}

func BenchmarkVerifyPassword(b *testing.B) {
	hash, err := HashPassword(testPassword)
	if err != nil {
		b.Fatalf("HashPassword: %v", err)
	}

	for b.Loop() {
		VerifyPassword(testPassword, hash) //nolint:errcheck // benchmark
	}
}

// ─── Tokens ─────────────────────────────────────────────────────────

func BenchmarkIssueTokens(b *testing.B) {
	issuer, err := NewTokenIssuer(testAccessSecret, testRefreshSecret)
	if err != nil {
		b.Fatalf("NewTokenIssuer: %v", err)
	}

	for b.Loop() {
		issuer.IssueTokens("usr-bench") //nolint:errcheck // benchmark
	}
}

func BenchmarkParseAccessToken(b *testing.B) {
	issuer, err := NewTokenIssuer(testAccessSecret, testRefreshSecret)
	if err != nil {
		b.Fatalf("NewTokenIssuer: %v", err)
	}
	pair, err := issuer.IssueTokens("usr-bench")
	if err != nil {
		b.Fatalf("IssueTokens: %v", err)
	}

	for b.Loop() {
		issuer.ParseAccessToken(pair.AccessToken) //nolint:errcheck // benchmark
	}
}

// ─── Per-request hot path: verify + one store read ──────────────────

func BenchmarkAuthenticate(b *testing.B) {
	store := NewSQLiteStore(testDB(b))
	issuer, err := NewTokenIssuer(testAccessSecret, testRefreshSecret)
	if err != nil {
		b.Fatalf("NewTokenIssuer: %v", err)
	}
	svc, err := NewService(store, issuer, slog.Default())
	if err != nil {
		b.Fatalf("NewService: %v", err)
	}
	user := seedTestUser(b, store, "bench@example.com", RoleClient)
	pair, err := issuer.IssueTokens(user.ID)
	if err != nil {
		b.Fatalf("IssueTokens: %v", err)
	}
	ctx := context.Background()

	for b.Loop() {
		svc.Authenticate(ctx, pair.AccessToken) //nolint:errcheck // benchmark
	}
}
