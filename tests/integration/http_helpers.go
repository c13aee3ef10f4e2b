//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/handlers"
	"github.com/BradenHooton/accord/internal/mail"
	"github.com/BradenHooton/accord/internal/observability"
	"github.com/BradenHooton/accord/internal/repositories"
	"github.com/BradenHooton/accord/internal/routes"
	"github.com/BradenHooton/accord/internal/services"
	pkglogger "github.com/BradenHooton/accord/pkg/logger"
)

// CapturingMailer keeps sent messages in memory
type CapturingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *CapturingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// LastCode returns the code in the most recent message to email
func (m *CapturingMailer) LastCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == email {
			if data, ok := m.sent[i].Data.(mail.ConfirmEmailData); ok {
				return data.Code
			}
		}
	}
	return ""
}

// TestServer is the full HTTP stack over a real database
type TestServer struct {
	Server *httptest.Server
	Mailer *CapturingMailer
	Tokens *auth.TokenManager
}

func NewTestServer(t *testing.T, tdb *TestDB) *TestServer {
	t.Helper()
	logger := slog.Default()
	auditLogger := pkglogger.NewAuditLogger(logger)

	users := repositories.NewUserRepository(tdb.Pool)
	codes := repositories.NewMagicCodeRepository(tdb.Pool)
	tokens := auth.NewTokenManager("integration-jwt-secret-0123456789abcdef", 15*time.Minute, 7*24*time.Hour)
	sessions := services.NewSessionService(users, tokens, auth.NewHasher(4), logger)
	cookieConfig := auth.CookieConfig{SameSite: "lax"}
	mailer := &CapturingMailer{}

	authService := services.NewAuthService(services.AuthDeps{
		Users:       users,
		Codes:       services.NewMagicCodeService(codes, 10*time.Minute, logger),
		Sessions:    sessions,
		Resolver:    services.NewOAuthResolver(users, sessions, logger, auditLogger),
		Cookies:     auth.NewSessionCookies(cookieConfig, 15*time.Minute, 7*24*time.Hour),
		Mailer:      mailer,
		Timing:      auth.NewTimingDelay(auth.TimingConfig{}),
		FrontendURL: "http://frontend.test",
		Logger:      logger,
		AuditLogger: auditLogger,
	})

	csrf, err := auth.NewCSRFTokens("integration-csrf-key-fedcba9876543210")
	require.NoError(t, err)

	router := routes.NewRouter(routes.Dependencies{
		AuthHandler:     handlers.NewAuthHandler(authService, nil, nil, logger),
		SessionStrategy: auth.NewCookieJWTStrategy(tokens),
		CSRF:            csrf,
		CookieConfig:    cookieConfig,
		Metrics:         observability.NewMetrics(),
		Health:          func(ctx context.Context) error { return tdb.Pool.Ping(ctx) },
		AllowedOrigins:  []string{"http://frontend.test"},
		Logger:          logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &TestServer{Server: srv, Mailer: mailer, Tokens: tokens}
}

// Client is a browser-like client: it keeps cookies and echoes the CSRF
// token on unsafe requests.
type Client struct {
	t         *testing.T
	base      string
	http      *http.Client
	csrfToken string
}

func (s *TestServer) NewClient(t *testing.T) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &Client{t: t, base: s.Server.URL, http: &http.Client{Jar: jar}}
}

// FetchCSRFToken primes the secret cookie and remembers the token
func (c *Client) FetchCSRFToken() {
	c.t.Helper()
	resp, body := c.Do(http.MethodGet, "/api/auth/csrf-token", nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	var out handlers.CSRFTokenResponse
	require.NoError(c.t, json.Unmarshal(body, &out))
	c.csrfToken = out.CSRFToken
}

func (c *Client) Do(method, path string, payload any) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrfToken != "" && method != http.MethodGet {
		req.Header.Set(auth.CSRFHeader, c.csrfToken)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, body
}

// Cookie returns the current value of a cookie in the jar
func (c *Client) Cookie(name string) string {
	req, _ := http.NewRequest(http.MethodGet, c.base, nil)
	for _, ck := range c.http.Jar.Cookies(req.URL) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// DoWithRefresh posts to /api/auth/refresh presenting token as the refresh
// cookie.
func (c *Client) DoWithRefresh(token string) (*http.Response, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+"/api/auth/refresh", nil)
	require.NoError(c.t, err)
	c.http.Jar.SetCookies(req.URL, []*http.Cookie{{Name: auth.RefreshTokenCookie, Value: token, Path: "/"}})
	req.Header.Set(auth.CSRFHeader, c.csrfToken)

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, body
}
