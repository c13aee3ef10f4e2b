package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/accord/internal/models"
	pkgauth "github.com/BradenHooton/accord/pkg/auth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	GeneratedUsernameLength = 10
	UsernameSuffixLength    = 4
	MaxUsernameLength       = 32

	// leaves room for "_" plus the collision suffix
	maxBaseUsernameLength = MaxUsernameLength - UsernameSuffixLength - 1
)

// UsernameFromName lowercases name and keeps only [a-z0-9_]. It returns ""
// when nothing usable is left.
func UsernameFromName(name string) string {
	lowered := cases.Lower(language.Und).String(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
			b.WriteRune('_')
		}
		if b.Len() >= maxBaseUsernameLength {
			break
		}
	}
	return strings.Trim(b.String(), "_")
}

// provisionUser creates a user with the preferred username, retrying once
// with a random suffix if the name is taken. When another request created
// the same email first, the existing record is returned.
func provisionUser(ctx context.Context, users UserRepository, logger *slog.Logger, email, username string, oauth bool) (*models.User, error) {
	if username == "" {
		generated, err := pkgauth.GenerateUsername(GeneratedUsernameLength)
		if err != nil {
			return nil, err
		}
		username = generated
	}

	candidate := &models.User{Email: email, Username: username, IsOAuthAccount: oauth}
	created, err := users.Create(ctx, candidate)
	if errors.Is(err, models.ErrUsernameTaken) {
		suffix, genErr := pkgauth.GenerateUsername(UsernameSuffixLength)
		if genErr != nil {
			return nil, genErr
		}
		logger.Debug("username taken, retrying with suffix", slog.String("username", username))
		candidate.Username = username + "_" + suffix
		created, err = users.Create(ctx, candidate)
	}
	if errors.Is(err, models.ErrConflict) && !errors.Is(err, models.ErrUsernameTaken) {
		existing, getErr := users.GetByEmail(ctx, email)
		if getErr == nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUserCreationFailed, err)
	}

	return created, nil
}
