package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/accord/internal/models"
	pkgauth "github.com/BradenHooton/accord/pkg/auth"
	pkglogger "github.com/BradenHooton/accord/pkg/logger"
)

const (
	MagicCodeBytes      = 3 // 6 hex chars
	DefaultMagicCodeTTL = 10 * time.Minute
)

// MagicCodeService issues and redeems single-use email sign-in codes.
type MagicCodeService struct {
	repo   MagicCodeRepository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewMagicCodeService(repo MagicCodeRepository, ttl time.Duration, logger *slog.Logger) *MagicCodeService {
	if ttl <= 0 {
		ttl = DefaultMagicCodeTTL
	}
	return &MagicCodeService{repo: repo, ttl: ttl, now: time.Now, logger: logger}
}

// Request stores a fresh code for email, replacing any earlier one.
func (s *MagicCodeService) Request(ctx context.Context, email string) (string, error) {
	code, err := pkgauth.GenerateHexCode(MagicCodeBytes)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	record := &models.MagicCode{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		s.logger.Error("failed to store magic code",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return "", fmt.Errorf("store magic code: %w", err)
	}

	return code, nil
}

// Verify consumes the code if it matches and is unexpired. A wrong code
// leaves the stored record in place.
func (s *MagicCodeService) Verify(ctx context.Context, email, code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if email == "" || len(code) != 2*MagicCodeBytes {
		return models.ErrInvalidOrExpiredCode
	}

	ok, err := s.repo.ConsumeIfMatch(ctx, email, code, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to consume magic code",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("consume magic code: %w", err)
	}
	if !ok {
		return models.ErrInvalidOrExpiredCode
	}
	return nil
}
