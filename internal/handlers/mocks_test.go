package handlers

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/models"
	"github.com/BradenHooton/accord/internal/services"
)

type MockAuthService struct {
	OAuthCallbackFunc    func(ctx context.Context, sink auth.CookieSink, profile *models.OAuthProfile) services.Redirect
	OAuthFailureFunc     func(err error) services.Redirect
	RequestMagicCodeFunc func(ctx context.Context, email string) error
	VerifyMagicCodeFunc  func(ctx context.Context, sink auth.CookieSink, email, code string) (*models.User, error)
	RefreshFunc          func(ctx context.Context, sink auth.CookieSink, refreshToken string) (*models.TokenPair, error)
	LogoutFunc           func(ctx context.Context, sink auth.CookieSink, refreshToken string)
	CurrentUserFunc      func(ctx context.Context, userID string) (*models.User, error)
}

func (m *MockAuthService) OAuthCallback(ctx context.Context, sink auth.CookieSink, profile *models.OAuthProfile) services.Redirect {
	if m.OAuthCallbackFunc != nil {
		return m.OAuthCallbackFunc(ctx, sink, profile)
	}
	return services.Redirect{URL: "http://frontend.test/"}
}

func (m *MockAuthService) OAuthFailure(err error) services.Redirect {
	if m.OAuthFailureFunc != nil {
		return m.OAuthFailureFunc(err)
	}
	return services.Redirect{URL: "http://frontend.test/login?error=failed", Err: err}
}

func (m *MockAuthService) RequestMagicCode(ctx context.Context, email string) error {
	if m.RequestMagicCodeFunc != nil {
		return m.RequestMagicCodeFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) VerifyMagicCode(ctx context.Context, sink auth.CookieSink, email, code string) (*models.User, error) {
	if m.VerifyMagicCodeFunc != nil {
		return m.VerifyMagicCodeFunc(ctx, sink, email, code)
	}
	return &models.User{ID: "user-1", Email: email}, nil
}

func (m *MockAuthService) Refresh(ctx context.Context, sink auth.CookieSink, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, sink, refreshToken)
	}
	return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *MockAuthService) Logout(ctx context.Context, sink auth.CookieSink, refreshToken string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, sink, refreshToken)
	}
}

func (m *MockAuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

type MockOAuthStarter struct {
	BeginURLFunc func(ctx context.Context) (string, error)
}

func (m *MockOAuthStarter) BeginURL(ctx context.Context) (string, error) {
	if m.BeginURLFunc != nil {
		return m.BeginURLFunc(ctx)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=s", nil
}

func newTestHandler(svc *MockAuthService) *AuthHandler {
	return NewAuthHandler(svc, &MockOAuthStarter{}, nil, slog.Default())
}
