package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/models"
)

// SessionService issues, rotates and revokes refresh-token sessions.
// Only a hash of the current refresh token is stored per user.
type SessionService struct {
	users  UserRepository
	tokens *auth.TokenManager
	hasher *auth.Hasher
	logger *slog.Logger
}

func NewSessionService(users UserRepository, tokens *auth.TokenManager, hasher *auth.Hasher, logger *slog.Logger) *SessionService {
	return &SessionService{users: users, tokens: tokens, hasher: hasher, logger: logger}
}

// Start issues a pair for user and replaces any stored hash.
func (s *SessionService) Start(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	pair, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRefreshTokenHash(ctx, user.ID, &hash); err != nil {
		return nil, fmt.Errorf("store refresh token hash: %w", err)
	}

	return pair, nil
}

// Rotate exchanges a valid refresh token for a new pair. Every rejection is
// reported as models.ErrInvalidRefreshToken; store failures are returned
// as-is so callers can answer 5xx.
func (s *SessionService) Rotate(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		s.logger.Debug("refresh token rejected", slog.Any("reason", err))
		return nil, models.ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.HasSession() {
		s.logger.Info("refresh attempted without active session", slog.String("user_id", user.ID))
		return nil, models.ErrInvalidRefreshToken
	}
	stored := *user.RefreshTokenHash
	if !s.hasher.Compare(stored, refreshToken) {
		s.logger.Warn("refresh token does not match stored hash", slog.String("user_id", user.ID))
		return nil, models.ErrInvalidRefreshToken
	}

	pair, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	next, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return nil, err
	}

	swapped, err := s.users.SwapRefreshTokenHash(ctx, user.ID, stored, next)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token hash: %w", err)
	}
	if !swapped {
		// a concurrent rotation or logout won the race
		s.logger.Warn("refresh token rotation lost race", slog.String("user_id", user.ID))
		return nil, models.ErrInvalidRefreshToken
	}

	return pair, nil
}

// Revoke clears the stored hash when refreshToken is the user's current
// token. Unknown or stale tokens are ignored.
func (s *SessionService) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !user.HasSession() || !s.hasher.Compare(*user.RefreshTokenHash, refreshToken) {
		return nil
	}

	if err := s.users.SetRefreshTokenHash(ctx, user.ID, nil); err != nil {
		return fmt.Errorf("clear refresh token hash: %w", err)
	}
	return nil
}
