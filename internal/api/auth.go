package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ashara-studio/ashara-core/internal/audit"
	"github.com/ashara-studio/ashara-core/internal/auth"
)

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// registerRequest is the request body for POST /auth/register.
type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Company  string `json:"company" validate:"omitempty,max=200"`
	Address  string `json:"address" validate:"omitempty,max=500"`
}

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// refreshRequest is the request body for POST /auth/refresh. The token is
// not validated here: a missing token is an authentication failure, not a
// malformed request.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         *auth.Identity `json:"user"`
}

// handleRegister opens a client account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	identity, err := s.sessions.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Company:  req.Company,
		Address:  req.Address,
	})
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.recordSession(r, audit.ActionRegister, identity.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": identity})
}

// handleLogin verifies credentials and returns a fresh token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pair, identity, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.recordSession(r, audit.ActionLogin, identity.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         identity,
	})
}

// handleRefresh exchanges a refresh token for a new pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	pair, err := s.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.recordSession(r, audit.ActionRefresh, "")
	writeJSON(w, http.StatusOK, pair)
}

// handleLogout revokes the access token that authenticated this request.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	if err := s.sessions.Logout(r.Context(), accessTokenFrom(r.Context()), identity); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.recordSession(r, audit.ActionLogout, identity.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// handleMe returns the identity attached by authMiddleware.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		s.writeAuthError(w, r, auth.ErrNoIdentity)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// decodeJSON decodes a single JSON object from the request body.
// An empty body yields io.EOF.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeAndValidate decodes and validates a request body, writing the
// error response itself. It reports whether the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return false
		}
		writeBadRequest(w, "invalid JSON body")
		return false
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeBadRequest(w, "invalid request")
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		writeValidationError(w, fields)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
