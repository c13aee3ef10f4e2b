package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	pkgauth "github.com/BradenHooton/accord/pkg/auth"
)

const (
	CSRFSecretCookie = "csrf-secret"
	CSRFTokenCookie  = "csrf-token"
	CSRFHeader       = "X-CSRF-Token"

	csrfSaltLength   = 8
	csrfSaltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CSRFTokens implements a stateless double-submit scheme. A per-client secret
// lives in an HttpOnly cookie; tokens are salt "-" HMAC(key, salt "-" secret)
// so nothing is stored server side.
type CSRFTokens struct {
	key []byte
}

func NewCSRFTokens(key string) (*CSRFTokens, error) {
	if key == "" {
		return nil, errors.New("csrf key cannot be empty")
	}
	return &CSRFTokens{key: []byte(key)}, nil
}

// NewSecret returns a fresh per-client secret.
func (c *CSRFTokens) NewSecret() (string, error) {
	secret, err := pkgauth.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate csrf secret: %w", err)
	}
	return secret, nil
}

// Create derives a token from secret with a fresh salt.
func (c *CSRFTokens) Create(secret string) (string, error) {
	salt, err := pkgauth.RandomString(csrfSaltLength, csrfSaltAlphabet)
	if err != nil {
		return "", fmt.Errorf("failed to generate csrf salt: %w", err)
	}
	return salt + "-" + c.sign(salt, secret), nil
}

// Verify recomputes the token for its embedded salt and compares in
// constant time.
func (c *CSRFTokens) Verify(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	salt, _, ok := strings.Cut(token, "-")
	if !ok || len(salt) != csrfSaltLength {
		return false
	}
	expected := salt + "-" + c.sign(salt, secret)
	return hmac.Equal([]byte(expected), []byte(token))
}

func (c *CSRFTokens) sign(salt, secret string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(salt + "-" + secret))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
