package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/accord/internal/database"
	"github.com/BradenHooton/accord/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, username, is_oauth_account, refresh_token_hash, created_at, updated_at`

type UserRepository struct {
	db database.Querier
}

func NewUserRepository(db database.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	err := scanner.Scan(
		&user.ID, &user.Email, &user.Username, &user.IsOAuthAccount,
		&user.RefreshTokenHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUserRow(r.db.QueryRow(ctx, query, email))
}

// Create inserts a new user. A duplicate email maps to models.ErrConflict,
// a duplicate username to models.ErrUsernameTaken.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	created := *user
	created.ID = uuid.New().String()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, username, is_oauth_account, refresh_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		created.ID, created.Email, created.Username, created.IsOAuthAccount,
		created.RefreshTokenHash, created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		mapped := database.MapPostgresError(err)
		if errors.Is(mapped, models.ErrConflict) && database.ConstraintName(err) == "users_username_key" {
			return nil, models.ErrUsernameTaken
		}
		if errors.Is(mapped, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("failed to insert user: %w", mapped)
	}

	return &created, nil
}

// SetRefreshTokenHash overwrites the stored hash. A nil hash ends the session.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	query := `UPDATE users SET refresh_token_hash = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("failed to update refresh token hash: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SwapRefreshTokenHash replaces expected with next in a single statement.
// It reports false when the stored hash no longer equals expected.
func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) (bool, error) {
	query := `
		UPDATE users SET refresh_token_hash = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2
	`

	tag, err := r.db.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token hash: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}
