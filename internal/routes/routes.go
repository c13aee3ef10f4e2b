package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/handlers"
	middlewareCustom "github.com/BradenHooton/accord/internal/middleware"
	"github.com/BradenHooton/accord/internal/observability"
	pkghttp "github.com/BradenHooton/accord/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies is everything the router needs. GoogleStrategy is nil when
// Google sign-in is not configured.
type Dependencies struct {
	AuthHandler     *handlers.AuthHandler
	SessionStrategy auth.Strategy
	GoogleStrategy  auth.Strategy
	CSRF            *auth.CSRFTokens
	CookieConfig    auth.CookieConfig
	Metrics         *observability.Metrics
	Health          HealthCheck
	AllowedOrigins  []string
	IPConfig        *pkghttp.IPConfig
	RequestTimeout  time.Duration
	Env             string
	Logger          *slog.Logger
}

// NewRouter builds the HTTP handler with the shared middleware stack.
func NewRouter(deps Dependencies) *chi.Mux {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecureLogger(deps.Logger, deps.IPConfig))
	router.Use(middleware.Recoverer)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: deps.Env}))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Instrument)
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", auth.CSRFHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.Timeout(timeout))

	router.Get("/health", healthHandler(deps.Health))
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, deps)
	})

	return router
}

// RegisterRoutes registers the /api routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	h := deps.AuthHandler

	router.Use(middlewareCustom.CSRFIssue(deps.CSRF, deps.CookieConfig, deps.Logger))
	router.Use(middlewareCustom.CSRFVerify(deps.CSRF, deps.Logger))

	router.Route("/auth", func(r chi.Router) {
		r.Get("/csrf-token", h.CSRFToken)

		r.Get("/google", h.GoogleLogin)
		if deps.GoogleStrategy != nil {
			r.With(auth.Require(deps.GoogleStrategy, h.GoogleFailure)).Get("/google/redirect", h.GoogleCallback)
		}

		r.With(middlewareCustom.RateLimitByIP(middlewareCustom.MagicRequestRateLimit(), deps.IPConfig)).
			Post("/magic/request", h.RequestMagicCode)
		r.With(middlewareCustom.RateLimitByIP(middlewareCustom.MagicVerifyRateLimit(), deps.IPConfig)).
			Post("/magic/verify", h.VerifyMagicCode)
		r.With(middlewareCustom.RateLimitByIP(middlewareCustom.RefreshRateLimit(), deps.IPConfig)).
			Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)

		r.With(auth.Require(deps.SessionStrategy, handlers.Unauthorized)).Get("/me", h.Me)
	})
}

func healthHandler(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := check(ctx); err != nil {
				pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
				return
			}
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
