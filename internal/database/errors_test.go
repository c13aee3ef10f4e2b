package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/BradenHooton/accord/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), models.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, models.ErrConflict},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation}), models.ErrConflict},
		{"not null", &pgconn.PgError{Code: pgerrcode.NotNullViolation}, models.ErrBadRequest},
		{"check", &pgconn.PgError{Code: pgerrcode.CheckViolation}, models.ErrBadRequest},
		{"other pg error", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, nil},
		{"unrelated", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapPostgresError(tt.in)
			switch {
			case tt.in == nil:
				assert.NoError(t, got)
			case tt.want == nil:
				assert.Equal(t, tt.in, got)
			default:
				assert.ErrorIs(t, got, tt.want)
			}
		})
	}
}

func TestConstraintName(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"})
	assert.Equal(t, "users_username_key", ConstraintName(err))
	assert.Empty(t, ConstraintName(errors.New("x")))
}
