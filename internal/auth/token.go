package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/accord/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret             []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
}

func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:             []byte(secret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		now:                time.Now,
	}
}

func (tm *TokenManager) AccessTokenExpiry() time.Duration  { return tm.accessTokenExpiry }
func (tm *TokenManager) RefreshTokenExpiry() time.Duration { return tm.refreshTokenExpiry }

// Issue mints a fresh access/refresh pair for the subject.
func (tm *TokenManager) Issue(userID, email string) (*models.TokenPair, error) {
	access, err := tm.GenerateAccessToken(userID, email)
	if err != nil {
		return nil, err
	}
	refresh, err := tm.GenerateRefreshToken(userID, email)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// GenerateAccessToken creates a short-lived access token with JTI
func (tm *TokenManager) GenerateAccessToken(userID, email string) (string, error) {
	token, err := tm.sign(models.TokenTypeAccess, userID, email, tm.accessTokenExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

// GenerateRefreshToken creates a long-lived refresh token with JTI
func (tm *TokenManager) GenerateRefreshToken(userID, email string) (string, error) {
	token, err := tm.sign(models.TokenTypeRefresh, userID, email, tm.refreshTokenExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return token, nil
}

func (tm *TokenManager) sign(tokenType, userID, email string, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &models.TokenClaims{
		Type:  tokenType,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.New().String(), // distinct even when minted in the same second
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

// ValidateToken verifies signature and lifetime and returns the claims.
// Failures are classified as models.ErrTokenExpired or models.ErrTokenMalformed.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenMalformed, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrTokenMalformed
	}

	return claims, nil
}

// ParseAccessToken validates tokenString and requires the access type.
func (tm *TokenManager) ParseAccessToken(tokenString string) (*models.TokenClaims, error) {
	return tm.parseTyped(tokenString, models.TokenTypeAccess)
}

// ParseRefreshToken validates tokenString and requires the refresh type.
func (tm *TokenManager) ParseRefreshToken(tokenString string) (*models.TokenClaims, error) {
	return tm.parseTyped(tokenString, models.TokenTypeRefresh)
}

func (tm *TokenManager) parseTyped(tokenString, want string) (*models.TokenClaims, error) {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", models.ErrTokenMalformed, want, claims.Type)
	}
	return claims, nil
}
