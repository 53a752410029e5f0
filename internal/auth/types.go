package auth

import (
	"fmt"
	"time"
)

// Role is the authorisation tier of an account. The set is closed: every
// switch over Role must handle both variants and deny anything else.
type Role string

const (
	// RoleAdmin manages the design catalogue and reviews client requests.
	RoleAdmin Role = "admin"

	// RoleClient browses designs and submits design requests.
	// Every self-registered account is a client.
	RoleClient Role = "client"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClient:
		return true
	default:
		return false
	}
}

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is the full account record as persisted. It carries the password
// hash and the current refresh token hash, so it must never leave the auth
// package boundary through a request context or a response body.
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Role             Role       `json:"role"`
	Phone            string     `json:"phone,omitempty"`
	Company          string     `json:"company,omitempty"`
	Address          string     `json:"address,omitempty"`
	RefreshTokenHash string     `json:"-"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Identity is the projection of a User attached to authenticated requests.
// It has no credential or refresh token fields.
type Identity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Phone     string     `json:"phone,omitempty"`
	Company   string     `json:"company,omitempty"`
	Address   string     `json:"address,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Identity strips the secrets from u.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Phone:     u.Phone,
		Company:   u.Company,
		Address:   u.Address,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

// TokenPair is an access token plus the refresh token that can replace it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
