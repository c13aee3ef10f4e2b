package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/accord/internal/database"
	"github.com/BradenHooton/accord/internal/models"
)

type MagicCodeRepository struct {
	db database.Querier
}

func NewMagicCodeRepository(db database.Querier) *MagicCodeRepository {
	return &MagicCodeRepository{db: db}
}

// Upsert stores code as the only live code for its email.
func (r *MagicCodeRepository) Upsert(ctx context.Context, code *models.MagicCode) error {
	query := `
		INSERT INTO magic_codes (email, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
	`

	_, err := r.db.Exec(ctx, query, code.Email, code.Code, code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert magic code: %w", database.MapPostgresError(err))
	}
	return nil
}

// ConsumeIfMatch deletes the record only when email, code and freshness all
// match, and reports whether a record was consumed.
func (r *MagicCodeRepository) ConsumeIfMatch(ctx context.Context, email, code string, now time.Time) (bool, error) {
	query := `DELETE FROM magic_codes WHERE email = $1 AND code = $2 AND expires_at > $3`

	tag, err := r.db.Exec(ctx, query, email, code, now)
	if err != nil {
		return false, fmt.Errorf("failed to consume magic code: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpired purges codes whose expiry has passed.
func (r *MagicCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM magic_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired magic codes: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}
