package services

import (
	"context"
	"strings"
	"time"

	"github.com/BradenHooton/accord/internal/models"
)

// UserRepository is implemented by the Postgres and Mongo user stores.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	SwapRefreshTokenHash(ctx context.Context, id, expected, next string) (bool, error)
}

// MagicCodeRepository is implemented by the Postgres and Mongo code stores.
type MagicCodeRepository interface {
	Upsert(ctx context.Context, code *models.MagicCode) error
	ConsumeIfMatch(ctx context.Context, email, code string, now time.Time) (bool, error)
}

// AuthMetrics counts sign-in outcomes per flow.
type AuthMetrics interface {
	RecordAuth(flow, outcome string)
}

// NormalizeEmail trims and lowercases an address so lookups and the
// one-code-per-email rule are case-insensitive. Only case changes; the
// stores compare with the same lowercasing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
