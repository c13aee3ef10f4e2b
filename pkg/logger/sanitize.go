package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@*******.com")
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	masked := local[:1] + strings.Repeat("*", len(local)-1)

	if dot := strings.LastIndex(domain, "."); dot > 0 {
		host := strings.Map(func(r rune) rune {
			if r == '.' {
				return r
			}
			return '*'
		}, domain[:dot])
		domain = host + domain[dot:]
	}

	return masked + "@" + domain
}

// RedactedAttr hides the value outside development.
func RedactedAttr(key, value, env string) slog.Attr {
	if env != "development" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

var sensitiveParams = []string{
	"code",
	"state",
	"token",
	"secret",
	"email",
	"csrf",
	"auth",
	"password",
}

// SanitizeQueryString reports whether the query string carries a parameter
// that must not reach the logs. Unparseable queries are treated as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for key := range values {
		key = strings.ToLower(key)
		for _, p := range sensitiveParams {
			if strings.Contains(key, p) {
				return true
			}
		}
	}
	return false
}
