package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/models"
	"github.com/BradenHooton/accord/internal/services"
	pkghttp "github.com/BradenHooton/accord/pkg/http"
)

const maxRequestBody = 1 << 20

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	OAuthCallback(ctx context.Context, sink auth.CookieSink, profile *models.OAuthProfile) services.Redirect
	OAuthFailure(err error) services.Redirect
	RequestMagicCode(ctx context.Context, email string) error
	VerifyMagicCode(ctx context.Context, sink auth.CookieSink, email, code string) (*models.User, error)
	Refresh(ctx context.Context, sink auth.CookieSink, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, sink auth.CookieSink, refreshToken string)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// OAuthStarter mints the provider consent URL.
type OAuthStarter interface {
	BeginURL(ctx context.Context) (string, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	google   OAuthStarter
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. google may be nil when Google
// sign-in is not configured.
func NewAuthHandler(service AuthServiceInterface, google OAuthStarter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		google:   google,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request DTOs

// MagicCodeRequest represents the request body for requesting a code
type MagicCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// VerifyMagicCodeRequest represents the request body for redeeming a code
type VerifyMagicCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,len=6,hexadecimal"`
}

// CSRFTokenResponse carries the token minted for this request
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// GoogleLogin redirects the browser to Google's consent screen
// @Router /auth/google [get]
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		pkghttp.WriteNotFound(w, "Google sign-in is not enabled")
		return
	}

	target, err := h.google.BeginURL(r.Context())
	if err != nil {
		h.logger.Error("failed to start google sign-in", slog.Any("error", err))
		http.Redirect(w, r, h.service.OAuthFailure(err).URL, http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// GoogleCallback completes sign-in after auth.Require has run the Google
// strategy
// @Router /auth/google/redirect [get]
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil || identity.Profile == nil {
		h.GoogleFailure(w, r, models.ErrUnauthorized)
		return
	}

	redirect := h.service.OAuthCallback(h.requestContext(r), auth.ResponseSink(w), identity.Profile)
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// GoogleFailure is the auth.FailureHandler for the callback route.
func (h *AuthHandler) GoogleFailure(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("google sign-in failed", slog.Any("error", err))
	http.Redirect(w, r, h.service.OAuthFailure(err).URL, http.StatusFound)
}

// RequestMagicCode mails a one-time sign-in code
// @Router /auth/magic/request [post]
func (h *AuthHandler) RequestMagicCode(w http.ResponseWriter, r *http.Request) {
	var req MagicCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.RequestMagicCode(h.requestContext(r), req.Email); err != nil {
		if errors.Is(err, models.ErrMailDeliveryFailed) {
			pkghttp.WriteInternalError(w, "Failed to send magic code")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Magic code sent to email")
}

// VerifyMagicCode redeems a code and starts a session
// @Router /auth/magic/verify [post]
func (h *AuthHandler) VerifyMagicCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyMagicCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	_, err := h.service.VerifyMagicCode(h.requestContext(r), auth.ResponseSink(w), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidOrExpiredCode):
			pkghttp.WriteUnauthorized(w, "Invalid or expired code")
		case errors.Is(err, models.ErrAccountProvenanceMismatch):
			pkghttp.WriteUnauthorized(w, models.ErrAccountProvenanceMismatch.Error())
		case errors.Is(err, models.ErrUserCreationFailed):
			pkghttp.WriteInternalError(w, "Failed to create user")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Logged in successfully")
}

// Refresh rotates the session from the refresh cookie
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.service.Refresh(h.requestContext(r), auth.ResponseSink(w), auth.RefreshTokenFromRequest(r))
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Invalid refresh token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, pair)
}

// Logout clears the session. It always succeeds.
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(h.requestContext(r), auth.ResponseSink(w), auth.RefreshTokenFromRequest(r))
	pkghttp.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

// CSRFToken returns the token minted by the CSRF middleware
// @Router /auth/csrf-token [get]
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, CSRFTokenResponse{CSRFToken: auth.CSRFTokenFromContext(r.Context())})
}

// Me returns the signed-in user
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user.ToResponse())
}

// Unauthorized is the auth.FailureHandler for session-protected routes.
func Unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	pkghttp.WriteUnauthorized(w, "Authentication required")
}

func (h *AuthHandler) requestContext(r *http.Request) context.Context {
	return services.WithClientInfo(r.Context(), services.ClientInfo{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	})
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}
