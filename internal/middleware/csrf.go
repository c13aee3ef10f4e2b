package middleware

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/models"
	pkghttp "github.com/BradenHooton/accord/pkg/http"
)

// CSRFIssue makes sure every client holds a CSRF secret and hands out a
// fresh token on each request. The token is written to a readable cookie
// and stored on the request context.
func CSRFIssue(tokens *auth.CSRFTokens, cookies auth.CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := ""
			if c, err := r.Cookie(auth.CSRFSecretCookie); err == nil {
				secret = c.Value
			}

			if secret == "" {
				var err error
				secret, err = tokens.NewSecret()
				if err != nil {
					logger.Error("failed to create csrf secret", slog.Any("error", err))
					pkghttp.WriteInternalError(w, "Internal server error")
					return
				}
				http.SetCookie(w, cookies.NewCookie(auth.CSRFSecretCookie, secret, 0, true))
			}

			token, err := tokens.Create(secret)
			if err != nil {
				logger.Error("failed to create csrf token", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}
			http.SetCookie(w, cookies.NewCookie(auth.CSRFTokenCookie, token, 0, false))

			next.ServeHTTP(w, r.WithContext(auth.WithCSRFToken(r.Context(), token)))
		})
	}
}

// CSRFVerify rejects unsafe requests whose X-CSRF-Token header does not
// verify against the client's secret cookie.
func CSRFVerify(tokens *auth.CSRFTokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			secret := ""
			if c, err := r.Cookie(auth.CSRFSecretCookie); err == nil {
				secret = c.Value
			}
			token := r.Header.Get(auth.CSRFHeader)

			if !tokens.Verify(secret, token) {
				logger.Warn("CSRF token validation failed",
					slog.Any("error", models.ErrCsrfValidationFailed),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("secret_present", secret != ""),
					slog.Bool("token_present", token != ""))
				pkghttp.WriteCSRFFailure(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
