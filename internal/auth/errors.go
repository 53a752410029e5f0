package auth

import "errors"

// Sentinel errors for auth operations. The messages are returned to clients
// verbatim, so they must not leak internals.
var (
	ErrNoToken             = errors.New("no token")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrUserGone            = errors.New("user no longer exists")
	ErrTokenRevoked        = errors.New("token invalidated")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshRequired     = errors.New("refresh token required")
	ErrInvalidCredentials  = errors.New("invalid credentials")

	ErrForbidden  = errors.New("insufficient permissions")
	ErrNoIdentity = errors.New("no authenticated identity")

	ErrUserNotFound = errors.New("user not found")

	ErrTokenRequired = errors.New("token required")
	ErrInvalidInput  = errors.New("invalid input")

	ErrEmailExists = errors.New("email already registered")

	// ErrRefreshConflict is returned by a store when a conditional refresh
	// token swap finds a different value than the caller expected.
	ErrRefreshConflict = errors.New("refresh token changed concurrently")

	ErrLogoutFailed = errors.New("logout failed")
)

// Kind classifies an auth error for the transport layer.
type Kind int

const (
	// KindInternal is the zero value so unclassified errors surface as 500s.
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidRequest
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// KindOf maps err onto the error taxonomy. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrNoToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrUserGone),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrRefreshRequired),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrNoIdentity):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrTokenRequired), errors.Is(err, ErrInvalidInput):
		return KindInvalidRequest
	case errors.Is(err, ErrEmailExists):
		return KindConflict
	default:
		return KindInternal
	}
}
