package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const bearerPrefix = "Bearer "

// Service runs the session lifecycle: login, per-request authentication,
// refresh token rotation and logout.
//
// Thread Safety: safe for concurrent use. All shared state lives in the
// CredentialStore; refresh rotation relies on its conditional update.
type Service struct {
	store  CredentialStore
	issuer *TokenIssuer
	logger *slog.Logger
	now    func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithNow replaces the clock used for last-login timestamps.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a session service.
func NewService(store CredentialStore, issuer *TokenIssuer, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		store:  store,
		issuer: issuer,
		logger: logger.With("component", "auth"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BearerToken extracts the token from an Authorization header value.
// It returns "" when the header is absent or not a bearer credential.
func BearerToken(header string) string {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate resolves the identity behind a raw access token.
//
// The checks run in a fixed order: token present, signature and expiry,
// user still exists, token not blacklisted. It performs a single store read
// and never mutates anything.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, ErrNoToken
	}

	claims, err := s.issuer.ParseAccessToken(rawToken)
	if err != nil {
		return nil, err
	}

	identity, revoked, err := s.store.FindIdentity(ctx, claims.UserID, HashToken(rawToken))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUserGone
	}
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return identity, nil
}

// Refresh exchanges the current refresh token for a new pair.
//
// The presented token must match the one stored for the user. The new
// refresh token is written with a conditional update against the hash that
// was read, so of two concurrent refreshes with the same token only one
// succeeds and the other is rejected without touching the store.
func (s *Service) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	if presented == "" {
		return TokenPair{}, ErrRefreshRequired
	}

	claims, err := s.issuer.ParseRefreshToken(presented)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.store.FindByID(ctx, claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("loading user: %w", err)
	}

	presentedHash := HashToken(presented)
	if user.RefreshTokenHash == "" ||
		subtle.ConstantTimeCompare([]byte(presentedHash), []byte(user.RefreshTokenHash)) != 1 {
		s.logger.Warn("refresh token mismatch", "user_id", user.ID)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err := s.issuer.IssueTokens(user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issuing tokens: %w", err)
	}

	err = s.store.SwapRefreshToken(ctx, user.ID, user.RefreshTokenHash, HashToken(pair.RefreshToken))
	switch {
	case errors.Is(err, ErrRefreshConflict), errors.Is(err, ErrUserNotFound):
		s.logger.Warn("refresh lost a concurrent rotation", "user_id", user.ID)
		return TokenPair{}, ErrInvalidRefreshToken
	case err != nil:
		return TokenPair{}, fmt.Errorf("storing refresh token: %w", err)
	}

	return pair, nil
}

// Logout revokes the presented access token and clears the refresh token,
// so neither can be used again.
func (s *Service) Logout(ctx context.Context, presentedAccess string, identity *Identity) error {
	if presentedAccess == "" {
		return ErrTokenRequired
	}
	if identity == nil {
		return ErrNoIdentity
	}

	if _, err := s.store.FindByID(ctx, identity.ID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %w", ErrLogoutFailed, err)
	}

	if err := s.store.RevokeSession(ctx, identity.ID, HashToken(presentedAccess)); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %w", ErrLogoutFailed, err)
	}

	return nil
}

// RegisterInput is the data needed to open a client account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Company  string
	Address  string
}

// Register creates a client account. Admin accounts are never created here.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	email := NormaliseEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" || email == "" || in.Password == "" {
		return nil, ErrInvalidInput
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleClient,
		Phone:        strings.TrimSpace(in.Phone),
		Company:      strings.TrimSpace(in.Company),
		Address:      strings.TrimSpace(in.Address),
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", "user_id", user.ID)
	return user.Identity(), nil
}

// Login verifies credentials and starts a new session. Any refresh token
// issued earlier is superseded.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *Identity, error) {
	user, err := s.store.FindByEmail(ctx, NormaliseEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("loading user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("verifying password for %s: %w", user.ID, err)
	}
	if !ok {
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	pair, err := s.issuer.IssueTokens(user.ID)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("issuing tokens: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)
	if err := s.store.StartSession(ctx, user.ID, HashToken(pair.RefreshToken), now); err != nil {
		return TokenPair{}, nil, fmt.Errorf("starting session: %w", err)
	}
	user.LastLogin = &now

	if NeedsRehash(user.PasswordHash) {
		s.upgradePasswordHash(ctx, user.ID, password)
	}

	return pair, user.Identity(), nil
}

// upgradePasswordHash replaces a legacy hash after a successful login.
// Failure leaves the legacy hash in place, which still verifies.
func (s *Service) upgradePasswordHash(ctx context.Context, userID, password string) {
	hash, err := HashPassword(password)
	if err == nil {
		err = s.store.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("password hash upgraded to argon2id", "user_id", userID)
}

// NormaliseEmail lower-cases and trims an email address.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
