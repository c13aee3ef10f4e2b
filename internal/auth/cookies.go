package auth

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieSink receives cookies produced by the session core.
// http.ResponseWriter is adapted with ResponseSink.
type CookieSink interface {
	SetCookie(cookie *http.Cookie)
}

type responseSink struct {
	w http.ResponseWriter
}

func (s responseSink) SetCookie(cookie *http.Cookie) {
	http.SetCookie(s.w, cookie)
}

// ResponseSink writes cookies as Set-Cookie headers on w.
func ResponseSink(w http.ResponseWriter) CookieSink {
	return responseSink{w: w}
}

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// NewCookie builds a cookie with the shared attribute set. maxAge of zero
// makes a session cookie; a negative maxAge deletes the cookie.
func (c CookieConfig) NewCookie(name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: httpOnly,
		Secure:   c.Secure,
		SameSite: parseSameSite(c.SameSite),
	}

	switch {
	case maxAge < 0:
		cookie.Value = ""
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	case maxAge > 0:
		cookie.MaxAge = int(maxAge / time.Second)
		cookie.Expires = time.Now().Add(maxAge)
	}
	return cookie
}

// SessionCookies writes and clears the access/refresh cookie pair.
type SessionCookies struct {
	config        CookieConfig
	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
}

func NewSessionCookies(config CookieConfig, accessMaxAge, refreshMaxAge time.Duration) *SessionCookies {
	return &SessionCookies{
		config:        config,
		accessMaxAge:  accessMaxAge,
		refreshMaxAge: refreshMaxAge,
	}
}

// WriteSession sets both session cookies as HttpOnly.
func (s *SessionCookies) WriteSession(sink CookieSink, accessToken, refreshToken string) {
	sink.SetCookie(s.config.NewCookie(AccessTokenCookie, accessToken, s.accessMaxAge, true))
	sink.SetCookie(s.config.NewCookie(RefreshTokenCookie, refreshToken, s.refreshMaxAge, true))
}

// ClearSession expires both cookies using the attributes they were set with,
// otherwise browsers keep the originals.
func (s *SessionCookies) ClearSession(sink CookieSink) {
	sink.SetCookie(s.config.NewCookie(AccessTokenCookie, "", -1, true))
	sink.SetCookie(s.config.NewCookie(RefreshTokenCookie, "", -1, true))
}

// AccessTokenFromRequest returns the access cookie value or "".
func AccessTokenFromRequest(r *http.Request) string {
	return cookieValue(r, AccessTokenCookie)
}

// RefreshTokenFromRequest returns the refresh cookie value or "".
func RefreshTokenFromRequest(r *http.Request) string {
	return cookieValue(r, RefreshTokenCookie)
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
