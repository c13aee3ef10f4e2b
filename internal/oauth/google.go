// Package oauth implements delegated sign-in with Google.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BradenHooton/accord/internal/config"
	"github.com/BradenHooton/accord/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	ProviderGoogle = "google"

	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var (
	ErrInvalidState     = errors.New("invalid or expired oauth state")
	ErrInvalidCode      = errors.New("invalid authorization code")
	ErrAccessDenied     = errors.New("access denied by provider")
	ErrMissingEmail     = errors.New("provider did not return an email address")
	ErrEmailNotVerified = errors.New("provider email address is not verified")
)

// GoogleProvider exchanges authorization codes for Google profiles.
type GoogleProvider struct {
	conf            *oauth2.Config
	userInfoURL     string
	requireVerified bool
	httpClient      *http.Client
}

func NewGoogleProvider(cfg config.GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL:     googleUserInfoURL,
		requireVerified: cfg.RequireVerifiedEmail,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL builds the consent screen URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// ResolveProfile trades code for a token and reads the user's profile.
func (p *GoogleProvider) ResolveProfile(ctx context.Context, code string) (*models.OAuthProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}

	u, err := p.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch google user: %w", err)
	}
	if u.Email == "" {
		return nil, ErrMissingEmail
	}
	if p.requireVerified && !u.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}

	return &models.OAuthProfile{
		Provider:  ProviderGoogle,
		Email:     u.Email,
		FirstName: u.GivenName,
		LastName:  u.FamilyName,
	}, nil
}

func (p *GoogleProvider) fetchUser(ctx context.Context, accessToken string) (*googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google api returned status %d", resp.StatusCode)
	}

	var user googleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}
