package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token lifetimes are fixed; they are not configuration.
const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenType distinguishes the two token classes inside the payload.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the JWT payload for both token classes.
type Claims struct {
	jwt.RegisteredClaims
	UserID string    `json:"id"`
	Type   TokenType `json:"typ"`
}

// TokenIssuer signs and verifies access and refresh tokens. Access tokens
// use one HMAC secret and refresh tokens another, so a leaked access secret
// cannot mint refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// IssuerOption customises a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock replaces the wall clock used for issuing and verifying tokens.
func WithClock(now func() time.Time) IssuerOption {
	return func(ti *TokenIssuer) {
		ti.now = now
	}
}

// NewTokenIssuer creates an issuer. Both secrets are required and must differ.
func NewTokenIssuer(accessSecret, refreshSecret string, opts ...IssuerOption) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token issuer: both signing secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("token issuer: access and refresh secrets must differ")
	}

	ti := &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(ti)
	}
	return ti, nil
}

// IssueTokens creates a fresh access and refresh token for userID. It has no
// side effects; callers persist the refresh token.
func (ti *TokenIssuer) IssueTokens(userID string) (TokenPair, error) {
	if userID == "" {
		return TokenPair{}, errors.New("issuing tokens: empty user id")
	}

	now := ti.now()

	access, err := ti.sign(userID, TokenTypeAccess, now, AccessTokenTTL, ti.accessSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := ti.sign(userID, TokenTypeRefresh, now, RefreshTokenTTL, ti.refreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (ti *TokenIssuer) sign(userID string, typ TokenType, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// Unique per token so two pairs issued in the same second differ.
			ID: uuid.NewString(),
		},
		UserID: userID,
		Type:   typ,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseAccessToken verifies an access token. Expiry is reported as
// ErrTokenExpired so clients know to refresh; every other failure is
// ErrTokenInvalid.
func (ti *TokenIssuer) ParseAccessToken(raw string) (*Claims, error) {
	claims, err := ti.parse(raw, ti.accessSecret, TokenTypeAccess)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return claims, nil
}

// ParseRefreshToken verifies a refresh token. Expiry and forgery are not
// distinguished: both are ErrInvalidRefreshToken.
func (ti *TokenIssuer) ParseRefreshToken(raw string) (*Claims, error) {
	claims, err := ti.parse(raw, ti.refreshSecret, TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	return claims, nil
}

func (ti *TokenIssuer) parse(raw string, secret []byte, want TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("malformed claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("missing user id")
	}
	if claims.Type != want {
		return nil, fmt.Errorf("wrong token type %q", claims.Type)
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest stored in place of a raw token.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
