package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/background"
	"github.com/BradenHooton/accord/internal/config"
	"github.com/BradenHooton/accord/internal/database"
	"github.com/BradenHooton/accord/internal/handlers"
	"github.com/BradenHooton/accord/internal/mail"
	"github.com/BradenHooton/accord/internal/oauth"
	"github.com/BradenHooton/accord/internal/observability"
	"github.com/BradenHooton/accord/internal/repositories"
	"github.com/BradenHooton/accord/internal/repositories/mongostore"
	"github.com/BradenHooton/accord/internal/routes"
	"github.com/BradenHooton/accord/internal/services"
	pkghttp "github.com/BradenHooton/accord/pkg/http"
	pkglogger "github.com/BradenHooton/accord/pkg/logger"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")

	return cmd
}

// codeStore is the full magic code store: the service half plus cleanup.
type codeStore interface {
	services.MagicCodeRepository
	background.ExpiredCodePurger
}

type stores struct {
	users  services.UserRepository
	codes  codeStore
	health routes.HealthCheck
	close  func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*stores, error) {
	if cfg.Store.Driver == config.StoreDriverMongo {
		client, err := database.ConnectMongo(ctx, &cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		if migrate {
			if err := mongostore.EnsureIndexes(ctx, db); err != nil {
				_ = client.Disconnect(context.Background())
				return nil, err
			}
		}
		return &stores{
			users:  mongostore.NewUserStore(db),
			codes:  mongostore.NewMagicCodeStore(db),
			health: func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:  func() { _ = client.Disconnect(context.Background()) },
		}, nil
	}

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(ctx, db.Pool, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &stores{
		users:  repositories.NewUserRepository(db.Pool),
		codes:  repositories.NewMagicCodeRepository(db.Pool),
		health: db.HealthCheck,
		close:  db.Close,
	}, nil
}

func newStateStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (oauth.StateStore, func(), error) {
	if cfg.Redis.URL == "" {
		logger.Warn("REDIS_URL not set, oauth state is kept in process memory")
		return oauth.NewMemoryStateStore(), func() {}, nil
	}
	client, err := database.ConnectRedis(ctx, &cfg.Redis, logger)
	if err != nil {
		return nil, nil, err
	}
	return oauth.NewRedisStateStore(client), func() { _ = client.Close() }, nil
}

func runServe(ctx context.Context, migrate bool) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logger, migrate)
	if err != nil {
		logger.Error("failed to open store", slog.String("driver", cfg.Store.Driver), slog.Any("error", err))
		return err
	}
	defer st.close()

	mailer, err := mail.New(ctx, cfg.Mail, logger)
	if err != nil {
		logger.Error("failed to initialize mail sender", slog.Any("error", err))
		return err
	}

	auditLogger := pkglogger.NewAuditLogger(logger)
	metrics := observability.NewMetrics()
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry)
	hasher := auth.NewHasher(cfg.Auth.RefreshHashCost)
	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   !cfg.IsDevelopment(),
		SameSite: "lax",
	}
	csrfTokens, err := auth.NewCSRFTokens(cfg.Auth.CSRFKey)
	if err != nil {
		return err
	}

	sessions := services.NewSessionService(st.users, tokenManager, hasher, logger)
	authService := services.NewAuthService(services.AuthDeps{
		Users:       st.users,
		Codes:       services.NewMagicCodeService(st.codes, cfg.Auth.MagicCodeTTL, logger),
		Sessions:    sessions,
		Resolver:    services.NewOAuthResolver(st.users, sessions, logger, auditLogger),
		Cookies:     auth.NewSessionCookies(cookieConfig, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry),
		Mailer:      mailer,
		Timing:      auth.NewTimingDelay(auth.TimingConfig{BaseDelay: cfg.Auth.FailureDelay, Jitter: cfg.Auth.FailureJitter}),
		Metrics:     metrics,
		FrontendURL: cfg.Server.FrontendURL,
		Logger:      logger,
		AuditLogger: auditLogger,
	})

	// interface values stay nil when Google is off
	var (
		googleStarter  handlers.OAuthStarter
		googleStrategy auth.Strategy
	)
	if cfg.Google.Enabled() {
		states, closeStates, err := newStateStore(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize oauth state store", slog.Any("error", err))
			return err
		}
		defer closeStates()

		strategy := oauth.NewGoogleStrategy(oauth.NewGoogleProvider(cfg.Google), states, cfg.Auth.OAuthStateTTL)
		googleStarter, googleStrategy = strategy, strategy
	} else {
		logger.Info("google sign-in disabled")
	}

	router := routes.NewRouter(routes.Dependencies{
		AuthHandler:     handlers.NewAuthHandler(authService, googleStarter, ipConfig, logger),
		SessionStrategy: auth.NewCookieJWTStrategy(tokenManager),
		GoogleStrategy:  googleStrategy,
		CSRF:            csrfTokens,
		CookieConfig:    cookieConfig,
		Metrics:         metrics,
		Health:          st.health,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		IPConfig:        ipConfig,
		RequestTimeout:  cfg.Server.WriteTimeout,
		Env:             cfg.Server.Env,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupManager := background.NewCleanupManager(st.codes, metrics, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", slog.Any("error", err))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	cleanupManager.Stop()
	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}
