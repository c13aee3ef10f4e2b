package oauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BradenHooton/accord/internal/auth"
	"github.com/BradenHooton/accord/internal/models"
	pkgauth "github.com/BradenHooton/accord/pkg/auth"
)

// ProfileResolver turns an authorization code into a profile.
type ProfileResolver interface {
	AuthCodeURL(state string) string
	ResolveProfile(ctx context.Context, code string) (*models.OAuthProfile, error)
}

// GoogleStrategy authenticates the provider callback request.
type GoogleStrategy struct {
	provider ProfileResolver
	states   StateStore
	stateTTL time.Duration
}

func NewGoogleStrategy(provider ProfileResolver, states StateStore, stateTTL time.Duration) *GoogleStrategy {
	return &GoogleStrategy{provider: provider, states: states, stateTTL: stateTTL}
}

func (s *GoogleStrategy) Name() string { return ProviderGoogle }

// BeginURL mints and stores a state and returns the consent URL.
func (s *GoogleStrategy) BeginURL(ctx context.Context) (string, error) {
	state, err := pkgauth.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	if err := s.states.Save(ctx, state, s.stateTTL); err != nil {
		return "", err
	}
	return s.provider.AuthCodeURL(state), nil
}

func (s *GoogleStrategy) Authenticate(r *http.Request) (*auth.Identity, error) {
	q := r.URL.Query()

	if q.Get("error") != "" {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, q.Get("error"))
	}

	state := q.Get("state")
	if state == "" {
		return nil, ErrInvalidState
	}
	ok, err := s.states.Consume(r.Context(), state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	code := q.Get("code")
	if code == "" {
		return nil, ErrInvalidCode
	}

	profile, err := s.provider.ResolveProfile(r.Context(), code)
	if err != nil {
		return nil, err
	}

	return &auth.Identity{Email: profile.Email, Profile: profile}, nil
}

var _ auth.Strategy = (*GoogleStrategy)(nil)
