package model

import (
	"strings"
	"time"
)

// RoleType is the portal role a user holds.
type RoleType string

const (
	RoleAdmin  RoleType = "ADMIN"  // Agency staff, manages every brief
	RoleClient RoleType = "CLIENT" // Submits and follows their own briefs
)

// ParseRole normalises a role string. Older payloads use lower case names.
func ParseRole(s string) (RoleType, bool) {
	switch RoleType(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleClient:
		return RoleClient, true
	}
	return "", false
}

// UnmarshalText accepts both the canonical and the legacy lower case forms.
func (r *RoleType) UnmarshalText(b []byte) error {
	if role, ok := ParseRole(string(b)); ok {
		*r = role
		return nil
	}
	*r = RoleType(b)
	return nil
}

type User struct {
	ID        string    `json:"id"`                // Unique identifier for the user
	Email     string    `json:"email"`             // User's email address
	Name      string    `json:"name"`              // Display name
	Role      RoleType  `json:"role"`              // ADMIN or CLIENT
	Company   *string   `json:"company,omitempty"` // Optional company name
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the payload returned by the login endpoint.
type LoginResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}
