package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveWithHeaders(cfg SecurityHeadersConfig, req *http.Request) *httptest.ResponseRecorder {
	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	rr := serveWithHeaders(SecurityHeadersConfig{Env: "development"}, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rr.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		setup func(r *http.Request)
		want  bool
	}{
		{name: "production behind TLS proxy", env: "production", setup: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, want: true},
		{name: "production direct TLS", env: "production", setup: func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, want: true},
		{name: "production plain http", env: "production", setup: func(r *http.Request) {}, want: false},
		{name: "development over https", env: "development", setup: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			tt.setup(req)

			rr := serveWithHeaders(SecurityHeadersConfig{Env: tt.env}, req)

			if tt.want {
				assert.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
			} else {
				assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
			}
		})
	}
}
