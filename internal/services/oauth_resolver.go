package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/accord/internal/models"
	pkglogger "github.com/BradenHooton/accord/pkg/logger"
)

// OAuthResolver maps a provider profile to a local account and starts a
// session for it.
type OAuthResolver struct {
	users       UserRepository
	sessions    *SessionService
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewOAuthResolver(users UserRepository, sessions *SessionService, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *OAuthResolver {
	return &OAuthResolver{
		users:       users,
		sessions:    sessions,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Resolve signs in an existing OAuth account or creates one. Accounts that
// were created through magic codes are refused.
func (r *OAuthResolver) Resolve(ctx context.Context, profile *models.OAuthProfile) (*models.TokenPair, *models.User, error) {
	if profile == nil {
		return nil, nil, models.ErrUnauthorized
	}
	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, nil, models.ErrUnauthorized
	}

	user, err := r.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsOAuthAccount {
			r.logger.Info("oauth sign-in refused for magic-code account",
				slog.String("user_id", user.ID))
			return nil, nil, models.ErrAccountProvenanceMismatch
		}
	case errors.Is(err, models.ErrNotFound):
		user, err = provisionUser(ctx, r.users, r.logger, email, UsernameFromName(profile.FirstName), true)
		if err != nil {
			r.logger.Error("failed to create oauth user",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", err))
			return nil, nil, models.ErrUserCreationFailed
		}
		if !user.IsOAuthAccount {
			return nil, nil, models.ErrAccountProvenanceMismatch
		}
		r.auditLogger.LogAccountAction(ctx, pkglogger.EventAccountCreated, user.ID,
			map[string]string{"provider": profile.Provider})
	default:
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	pair, err := r.sessions.Start(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}
