package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/mail"
	"github.com/BradenHooton/accord/internal/models"
	pkglogger "github.com/BradenHooton/accord/pkg/logger"
)

const testJWTSecret = "services-test-secret-9f8e7d6c5b4a"

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
}

func newTestHasher() *auth.Hasher {
	return auth.NewHasher(4)
}

func newTestSessionService(users UserRepository) *SessionService {
	return NewSessionService(users, newTestTokenManager(), newTestHasher(), slog.Default())
}

// memoryUserStore is an in-memory UserRepository with the same conflict
// rules as the real stores.
type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	seq   int
}

func newMemoryUserStore(seed ...*models.User) *memoryUserStore {
	s := &memoryUserStore{users: make(map[string]*models.User)}
	for _, u := range seed {
		s.users[u.ID] = cloneUser(u)
	}
	return s
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		c.RefreshTokenHash = &h
	}
	return &c
}

func (s *memoryUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memoryUserStore) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return nil, models.ErrUsernameTaken
		}
		if strings.EqualFold(u.Email, user.Email) {
			return nil, fmt.Errorf("%w: email exists", models.ErrConflict)
		}
	}
	s.seq++
	created := cloneUser(user)
	created.ID = fmt.Sprintf("user-%d", s.seq)
	created.CreatedAt = time.Now().UTC()
	created.UpdatedAt = created.CreatedAt
	s.users[created.ID] = created
	return cloneUser(created), nil
}

func (s *memoryUserStore) SetRefreshTokenHash(_ context.Context, id string, hash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	if hash == nil {
		u.RefreshTokenHash = nil
		return nil
	}
	h := *hash
	u.RefreshTokenHash = &h
	return nil
}

func (s *memoryUserStore) SwapRefreshTokenHash(_ context.Context, id, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != expected {
		return false, nil
	}
	u.RefreshTokenHash = &next
	return true, nil
}

func (s *memoryUserStore) hashFor(id string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok && u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		return &h
	}
	return nil
}

// MockUserRepository overrides individual store calls; unset funcs fall
// through to the embedded memory store.
type MockUserRepository struct {
	*memoryUserStore
	GetByIDFunc              func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc           func(ctx context.Context, email string) (*models.User, error)
	CreateFunc               func(ctx context.Context, user *models.User) (*models.User, error)
	SetRefreshTokenHashFunc  func(ctx context.Context, id string, hash *string) error
	SwapRefreshTokenHashFunc func(ctx context.Context, id, expected, next string) (bool, error)
}

func newMockUserRepository(seed ...*models.User) *MockUserRepository {
	return &MockUserRepository{memoryUserStore: newMemoryUserStore(seed...)}
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return m.memoryUserStore.GetByID(ctx, id)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return m.memoryUserStore.GetByEmail(ctx, email)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return m.memoryUserStore.Create(ctx, user)
}

func (m *MockUserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	if m.SetRefreshTokenHashFunc != nil {
		return m.SetRefreshTokenHashFunc(ctx, id, hash)
	}
	return m.memoryUserStore.SetRefreshTokenHash(ctx, id, hash)
}

func (m *MockUserRepository) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) (bool, error) {
	if m.SwapRefreshTokenHashFunc != nil {
		return m.SwapRefreshTokenHashFunc(ctx, id, expected, next)
	}
	return m.memoryUserStore.SwapRefreshTokenHash(ctx, id, expected, next)
}

// memoryCodeStore mirrors the conditional-delete semantics of the code stores.
type memoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]models.MagicCode

	UpsertErr  error
	ConsumeErr error
}

func newMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{codes: make(map[string]models.MagicCode)}
}

func (s *memoryCodeStore) Upsert(_ context.Context, code *models.MagicCode) error {
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code.Email] = *code
	return nil
}

func (s *memoryCodeStore) ConsumeIfMatch(_ context.Context, email, code string, now time.Time) (bool, error) {
	if s.ConsumeErr != nil {
		return false, s.ConsumeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[email]
	if !ok || stored.Code != code || stored.IsExpired(now) {
		return false, nil
	}
	delete(s.codes, email)
	return true, nil
}

func (s *memoryCodeStore) get(email string) (models.MagicCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[email]
	return c, ok
}

// MockMailer records sent messages.
type MockMailer struct {
	mu       sync.Mutex
	Sent     []mail.Message
	SendFunc func(ctx context.Context, msg mail.Message) error
}

func (m *MockMailer) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

type recordingSink struct {
	cookies []*http.Cookie
}

func (s *recordingSink) SetCookie(cookie *http.Cookie) {
	s.cookies = append(s.cookies, cookie)
}

func (s *recordingSink) get(name string) *http.Cookie {
	for i := len(s.cookies) - 1; i >= 0; i-- {
		if s.cookies[i].Name == name {
			return s.cookies[i]
		}
	}
	return nil
}

type recordingMetrics struct {
	mu     sync.Mutex
	events []string
}

func (m *recordingMetrics) RecordAuth(flow, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, flow+":"+outcome)
}

type testAuthEnv struct {
	service *AuthService
	users   *MockUserRepository
	codes   *memoryCodeStore
	mailer  *MockMailer
	metrics *recordingMetrics
	tokens  *auth.TokenManager
}

func newTestAuthEnv(seed ...*models.User) *testAuthEnv {
	logger := slog.Default()
	auditLogger := pkglogger.NewAuditLogger(logger)

	users := newMockUserRepository(seed...)
	codes := newMemoryCodeStore()
	tokens := newTestTokenManager()
	sessions := NewSessionService(users, tokens, newTestHasher(), logger)
	mailer := &MockMailer{}
	metrics := &recordingMetrics{}

	svc := NewAuthService(AuthDeps{
		Users:       users,
		Codes:       NewMagicCodeService(codes, 10*time.Minute, logger),
		Sessions:    sessions,
		Resolver:    NewOAuthResolver(users, sessions, logger, auditLogger),
		Cookies:     auth.NewSessionCookies(auth.CookieConfig{SameSite: "lax"}, 15*time.Minute, 7*24*time.Hour),
		Mailer:      mailer,
		Timing:      auth.NewTimingDelay(auth.TimingConfig{}),
		Metrics:     metrics,
		FrontendURL: "http://localhost:5173/",
		Logger:      logger,
		AuditLogger: auditLogger,
	})

	return &testAuthEnv{service: svc, users: users, codes: codes, mailer: mailer, metrics: metrics, tokens: tokens}
}
