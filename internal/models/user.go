package models

import (
	"time"
)

// User is the persisted identity. IsOAuthAccount records how the account was
// first created and decides which sign-in path it may use afterwards.
type User struct {
	ID               string
	Email            string
	Username         string
	IsOAuthAccount   bool
	RefreshTokenHash *string // nil when no session is active
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasSession reports whether a refresh token hash is currently stored.
func (u *User) HasSession() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}

// UserResponse is the public view of a user returned by /auth/me.
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	IsOAuthAccount bool      `json:"isOAuthAccount"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		IsOAuthAccount: u.IsOAuthAccount,
		CreatedAt:      u.CreatedAt,
	}
}
