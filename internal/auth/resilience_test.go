package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Resilience tests cover concurrent and failure scenarios. They share the
// TestResilience_ prefix for filtering:
//
//	go test -run TestResilience -race ./internal/auth/...

// TestResilience_ConcurrentRefresh presents the same refresh token from
// several goroutines at once. Exactly one may win; the others must be
// rejected and the stored token must belong to the winner.
func TestResilience_ConcurrentRefresh(t *testing.T) {
	f := newSessionFixture(t)
	ident, pair := f.loggedIn(t, "race@example.com")
	ctx := context.Background()

	const attempts = 8

	var wg sync.WaitGroup
	type result struct {
		pair TokenPair
		err  error
	}
	results := make(chan result, attempts)

	start := make(chan struct{})
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := f.svc.Refresh(ctx, pair.RefreshToken)
			results <- result{pair: p, err: err}
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var winners []TokenPair
	for r := range results {
		switch {
		case r.err == nil:
			winners = append(winners, r.pair)
		case errors.Is(r.err, ErrInvalidRefreshToken):
		default:
			t.Errorf("unexpected refresh error: %v", r.err)
		}
	}

	if len(winners) != 1 {
		t.Fatalf("successful refreshes = %d, want exactly 1", len(winners))
	}

	stored, err := f.store.FindByID(ctx, ident.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.RefreshTokenHash != HashToken(winners[0].RefreshToken) {
		t.Error("stored refresh token does not belong to the winning refresh")
	}
}

// TestResilience_ConcurrentRefreshAndLogout races a refresh against a
// logout. Whatever the order, the pre-logout refresh token must be dead
// afterwards.
func TestResilience_ConcurrentRefreshAndLogout(t *testing.T) {
	f := newSessionFixture(t)
	ident, pair := f.loggedIn(t, "race2@example.com")
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.svc.Refresh(ctx, pair.RefreshToken) //nolint:errcheck // either outcome is valid
	}()
	go func() {
		defer wg.Done()
		if err := f.svc.Logout(ctx, pair.AccessToken, ident); err != nil {
			t.Errorf("Logout() error = %v", err)
		}
	}()
	wg.Wait()

	if _, err := f.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("refresh after logout error = %v, want ErrInvalidRefreshToken", err)
	}
	if _, err := f.svc.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("authenticate after logout error = %v, want ErrTokenRevoked", err)
	}
}

// TestResilience_ContextCancellation verifies store calls fail cleanly on a
// cancelled context instead of hanging or mutating state.
func TestResilience_ContextCancellation(t *testing.T) {
	f := newSessionFixture(t)
	ident, pair := f.loggedIn(t, "cancel@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Authenticate(ctx, pair.AccessToken); err == nil {
		t.Error("Authenticate with cancelled context should fail")
	}
	if _, err := f.svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Error("Refresh with cancelled context should fail")
	}
	if err := f.svc.Logout(ctx, pair.AccessToken, ident); err == nil {
		t.Error("Logout with cancelled context should fail")
	}

	// The session is untouched and still works with a live context.
	if _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Errorf("Refresh after cancelled attempts error = %v", err)
	}
}
