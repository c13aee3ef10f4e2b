package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/mail"
	"github.com/BradenHooton/accord/internal/models"
	"github.com/BradenHooton/accord/internal/oauth"
	pkglogger "github.com/BradenHooton/accord/pkg/logger"
)

// Auth flow labels used for metrics.
const (
	FlowOAuth   = "oauth"
	FlowMagic   = "magic_code"
	FlowRefresh = "refresh"
	FlowLogout  = "logout"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Redirect is where the browser is sent after the OAuth callback.
type Redirect struct {
	URL string
	Err error
}

// ClientInfo carries request metadata into audit records.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type clientInfoKey struct{}

func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

func clientInfo(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users       UserRepository
	Codes       *MagicCodeService
	Sessions    *SessionService
	Resolver    *OAuthResolver
	Cookies     *auth.SessionCookies
	Mailer      mail.Sender
	Timing      *auth.TimingDelay
	Metrics     AuthMetrics
	FrontendURL string
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

// AuthService orchestrates the sign-in flows and writes session cookies.
type AuthService struct {
	users       UserRepository
	codes       *MagicCodeService
	sessions    *SessionService
	resolver    *OAuthResolver
	cookies     *auth.SessionCookies
	mailer      mail.Sender
	timing      *auth.TimingDelay
	metrics     AuthMetrics
	frontendURL string
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		users:       deps.Users,
		codes:       deps.Codes,
		sessions:    deps.Sessions,
		resolver:    deps.Resolver,
		cookies:     deps.Cookies,
		mailer:      deps.Mailer,
		timing:      deps.Timing,
		metrics:     deps.Metrics,
		frontendURL: strings.TrimRight(deps.FrontendURL, "/"),
		logger:      deps.Logger,
		auditLogger: deps.AuditLogger,
		now:         time.Now,
	}
}

// OAuthCallback finishes a provider sign-in. It never returns an error;
// failures are encoded in the redirect's query string.
func (s *AuthService) OAuthCallback(ctx context.Context, sink auth.CookieSink, profile *models.OAuthProfile) Redirect {
	pair, user, err := s.resolver.Resolve(ctx, profile)
	if err != nil {
		email := ""
		if profile != nil {
			email = profile.Email
		}
		s.audit(ctx, pkglogger.EventOAuthSignIn, "", email, err)
		s.record(FlowOAuth, err)
		return s.OAuthFailure(err)
	}

	s.cookies.WriteSession(sink, pair.AccessToken, pair.RefreshToken)
	s.audit(ctx, pkglogger.EventOAuthSignIn, user.ID, user.Email, nil)
	s.record(FlowOAuth, nil)
	return Redirect{URL: s.frontendURL + "/"}
}

// OAuthFailure builds the login redirect for a failed provider sign-in.
func (s *AuthService) OAuthFailure(err error) Redirect {
	return Redirect{
		URL: s.frontendURL + "/login?error=" + url.QueryEscape(oauthFailureMessage(err)),
		Err: err,
	}
}

func oauthFailureMessage(err error) string {
	for _, known := range []error{
		models.ErrAccountProvenanceMismatch,
		models.ErrUserCreationFailed,
		oauth.ErrAccessDenied,
		oauth.ErrInvalidState,
		oauth.ErrInvalidCode,
		oauth.ErrMissingEmail,
		oauth.ErrEmailNotVerified,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "authentication failed"
}

// RequestMagicCode issues a code and mails it. The code is never returned.
func (s *AuthService) RequestMagicCode(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	code, err := s.codes.Request(ctx, email)
	if err != nil {
		return err
	}

	msg := mail.Message{
		To:       email,
		Subject:  "Your confirmation code: " + code,
		Template: mail.TemplateConfirmEmail,
		Data:     mail.ConfirmEmailData{Code: code, Year: s.now().Year()},
		Tag:      mail.TemplateConfirmEmail,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send magic code",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		s.audit(ctx, pkglogger.EventMagicCodeRequest, "", email, models.ErrMailDeliveryFailed)
		return models.ErrMailDeliveryFailed
	}

	s.audit(ctx, pkglogger.EventMagicCodeRequest, "", email, nil)
	return nil
}

// VerifyMagicCode redeems a code, creating the account on first use, and
// writes session cookies.
func (s *AuthService) VerifyMagicCode(ctx context.Context, sink auth.CookieSink, email, code string) (*models.User, error) {
	start := time.Now()
	email = NormalizeEmail(email)

	if err := s.codes.Verify(ctx, email, code); err != nil {
		s.timing.WaitFrom(ctx, start, false)
		s.audit(ctx, pkglogger.EventMagicCodeSignIn, "", email, err)
		s.record(FlowMagic, err)
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		user, err = provisionUser(ctx, s.users, s.logger, email, "", false)
		if err != nil {
			s.logger.Error("failed to create user",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", err))
			s.record(FlowMagic, models.ErrUserCreationFailed)
			return nil, models.ErrUserCreationFailed
		}
		if !user.IsOAuthAccount {
			s.auditLogger.LogAccountAction(ctx, pkglogger.EventAccountCreated, user.ID,
				map[string]string{"provider": "magic_code"})
		}
	default:
		s.record(FlowMagic, err)
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.IsOAuthAccount {
		s.audit(ctx, pkglogger.EventMagicCodeSignIn, user.ID, email, models.ErrAccountProvenanceMismatch)
		s.record(FlowMagic, models.ErrAccountProvenanceMismatch)
		return nil, models.ErrAccountProvenanceMismatch
	}

	pair, err := s.sessions.Start(ctx, user)
	if err != nil {
		s.logger.Error("failed to start session", slog.String("user_id", user.ID), slog.Any("error", err))
		s.record(FlowMagic, err)
		return nil, err
	}

	s.cookies.WriteSession(sink, pair.AccessToken, pair.RefreshToken)
	s.audit(ctx, pkglogger.EventMagicCodeSignIn, user.ID, email, nil)
	s.record(FlowMagic, nil)
	return user, nil
}

// Refresh rotates the session. Rejected tokens map to models.ErrUnauthorized.
func (s *AuthService) Refresh(ctx context.Context, sink auth.CookieSink, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		s.record(FlowRefresh, models.ErrUnauthorized)
		return nil, models.ErrUnauthorized
	}

	pair, err := s.sessions.Rotate(ctx, refreshToken)
	if errors.Is(err, models.ErrInvalidRefreshToken) {
		s.audit(ctx, pkglogger.EventSessionRefresh, "", "", err)
		s.record(FlowRefresh, err)
		return nil, fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}
	if err != nil {
		s.logger.Error("failed to rotate refresh token", slog.Any("error", err))
		s.record(FlowRefresh, err)
		return nil, fmt.Errorf("%w: %w", models.ErrInternalServer, err)
	}

	s.cookies.WriteSession(sink, pair.AccessToken, pair.RefreshToken)
	s.record(FlowRefresh, nil)
	return pair, nil
}

// Logout revokes the session if possible and always clears the cookies.
func (s *AuthService) Logout(ctx context.Context, sink auth.CookieSink, refreshToken string) {
	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		s.logger.Warn("failed to revoke refresh token on logout", slog.Any("error", err))
	}
	s.cookies.ClearSession(sink)
	s.audit(ctx, pkglogger.EventLogout, "", "", nil)
	s.record(FlowLogout, nil)
}

// CurrentUser loads the signed-in user for the identity on the request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) audit(ctx context.Context, eventType, userID, email string, err error) {
	if s.auditLogger == nil {
		return
	}
	info := clientInfo(ctx)
	event := pkglogger.AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
		Success:   err == nil,
	}
	if err != nil {
		event.FailureReason = err.Error()
	}
	s.auditLogger.LogAuthAttempt(ctx, event)
}

func (s *AuthService) record(flow string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case isAuthFailure(err):
		outcome = OutcomeFailure
	default:
		outcome = OutcomeError
	}
	s.metrics.RecordAuth(flow, outcome)
}

func isAuthFailure(err error) bool {
	return errors.Is(err, models.ErrInvalidOrExpiredCode) ||
		errors.Is(err, models.ErrAccountProvenanceMismatch) ||
		errors.Is(err, models.ErrInvalidRefreshToken) ||
		errors.Is(err, models.ErrUnauthorized) ||
		errors.Is(err, oauth.ErrInvalidState) ||
		errors.Is(err, oauth.ErrAccessDenied)
}
