package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAuth(t *testing.T) {
	m := NewMetrics()

	m.RecordAuth("magic_code", "success")
	m.RecordAuth("magic_code", "success")
	m.RecordAuth("refresh", "failure")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("magic_code", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("refresh", "failure")))
}

func TestMetrics_RecordCleanup(t *testing.T) {
	m := NewMetrics()

	m.RecordCleanup(3, nil)
	m.RecordCleanup(0, errors.New("db down"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.codesPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cleanupFailures))
}

func TestMetrics_InstrumentUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/456", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/users/{id}", "204")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordAuth("oauth", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `accord_auth_attempts_total{flow="oauth",outcome="success"} 1`)
}
