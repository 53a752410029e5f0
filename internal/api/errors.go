package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashara-studio/ashara-core/internal/auth"
)

// Error represents a structured error response.
type Error struct {
	Status  int               `json:"status"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// publicErrors are the auth errors whose message may be shown to clients.
// Order matters: the first match wins, so more specific errors come first.
var publicErrors = []error{
	auth.ErrNoToken,
	auth.ErrTokenExpired,
	auth.ErrTokenInvalid,
	auth.ErrUserGone,
	auth.ErrTokenRevoked,
	auth.ErrInvalidRefreshToken,
	auth.ErrRefreshRequired,
	auth.ErrInvalidCredentials,
	auth.ErrNoIdentity,
	auth.ErrForbidden,
	auth.ErrUserNotFound,
	auth.ErrTokenRequired,
	auth.ErrInvalidInput,
	auth.ErrEmailExists,
	auth.ErrLogoutFailed,
}

// rejectionReasons labels auth_rejections_total. Kept small and fixed.
var rejectionReasons = map[error]string{
	auth.ErrNoToken:             "no_token",
	auth.ErrTokenExpired:        "token_expired",
	auth.ErrTokenInvalid:        "token_invalid",
	auth.ErrUserGone:            "user_gone",
	auth.ErrTokenRevoked:        "token_revoked",
	auth.ErrInvalidRefreshToken: "invalid_refresh_token",
	auth.ErrRefreshRequired:     "refresh_required",
	auth.ErrInvalidCredentials:  "invalid_credentials",
	auth.ErrNoIdentity:          "no_identity",
	auth.ErrForbidden:           "forbidden",
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeValidationError writes a 400 response listing the offending fields.
func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, Error{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeValidation,
		Message: "request validation failed",
		Fields:  fields,
	})
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeAuthError maps an auth error onto a status code and envelope.
// Internal errors are logged with the request ID and hidden from the client.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)

	var status int
	var code string
	switch kind {
	case auth.KindUnauthenticated:
		status, code = http.StatusUnauthorized, ErrCodeUnauthorized
	case auth.KindForbidden:
		status, code = http.StatusForbidden, ErrCodeForbidden
	case auth.KindNotFound:
		status, code = http.StatusNotFound, ErrCodeNotFound
	case auth.KindInvalidRequest:
		status, code = http.StatusBadRequest, ErrCodeBadRequest
	case auth.KindConflict:
		status, code = http.StatusConflict, ErrCodeConflict
	default:
		status, code = http.StatusInternalServerError, ErrCodeInternal
	}

	if reason := rejectionReason(err); reason != "" {
		authRejections.WithLabelValues(reason).Inc()
	}

	message := publicMessage(err)
	if kind == auth.KindInternal {
		s.logger.Error("auth request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
		)
		if message == "" {
			message = "internal server error"
		}
	}

	writeError(w, status, code, message)
}

func publicMessage(err error) string {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ""
}

func rejectionReason(err error) string {
	for known, reason := range rejectionReasons {
		if errors.Is(err, known) {
			return reason
		}
	}
	return ""
}
