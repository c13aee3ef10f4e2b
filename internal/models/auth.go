package models

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims carries the session identity. The user ID travels in the
// registered "sub" claim.
type TokenClaims struct {
	Type  string `json:"typ"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (c *TokenClaims) UserID() string {
	return c.Subject
}

// TokenPair is returned on sign-in and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// OAuthProfile is the identity handed over by a delegated provider.
type OAuthProfile struct {
	Provider  string
	Email     string
	FirstName string
	LastName  string
}
