package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/accord/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// MagicRequestRateLimit limits how often a client can ask for codes
func MagicRequestRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 5, Window: time.Minute}
}

// MagicVerifyRateLimit bounds code guessing per client
func MagicVerifyRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

func RefreshRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 30, Window: time.Minute}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// Forwarded headers are only honoured from trusted proxies.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	window := config.Window
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		config.Requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
