package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/accord/internal/models"
)

// Identity is what a strategy learned about the caller. Session strategies
// fill UserID and Email; delegated strategies fill Profile.
type Identity struct {
	UserID   string
	Email    string
	Profile  *models.OAuthProfile
	Strategy string
}

// Strategy authenticates a request in one particular way.
type Strategy interface {
	Name() string
	Authenticate(r *http.Request) (*Identity, error)
}

var ErrNoCredentials = errors.New("no credentials presented")

// CookieJWTStrategy accepts the access token from the accessToken cookie,
// falling back to an Authorization: Bearer header.
type CookieJWTStrategy struct {
	tokens *TokenManager
}

func NewCookieJWTStrategy(tokens *TokenManager) *CookieJWTStrategy {
	return &CookieJWTStrategy{tokens: tokens}
}

func (s *CookieJWTStrategy) Name() string { return "jwt" }

func (s *CookieJWTStrategy) Authenticate(r *http.Request) (*Identity, error) {
	token := AccessTokenFromRequest(r)
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		return nil, ErrNoCredentials
	}

	claims, err := s.tokens.ParseAccessToken(token)
	if err != nil {
		return nil, errors.Join(models.ErrUnauthorized, err)
	}

	return &Identity{UserID: claims.UserID(), Email: claims.Email}, nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
