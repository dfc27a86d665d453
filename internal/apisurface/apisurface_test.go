package apisurface

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/siteprobe/siteprobe/internal/backend"
	"github.com/siteprobe/siteprobe/internal/config"
	"github.com/siteprobe/siteprobe/internal/supervisor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(apiKey string) *Server {
	cfg := config.DefaultSupervisorConfig()
	be := backend.New("https://api.example.com", "", "", "")
	sup := supervisor.New(cfg, be, discardLogger())
	return New(sup, be, apiKey, discardLogger())
}

func TestHealthDoesNotRequireAuth(t *testing.T) {
	srv := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", rec.Code)
	}
}

func TestAuthRejectsMissingBearerToken(t *testing.T) {
	srv := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without an Authorization header, got %d", rec.Code)
	}
}

func TestAuthAcceptsMatchingBearerToken(t *testing.T) {
	srv := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with a matching bearer token, got %d", rec.Code)
	}
}

func TestAuthPassThroughWhenNoAPIKeyConfigured(t *testing.T) {
	srv := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 when no API key is configured, got %d", rec.Code)
	}
}

func TestMetricsDoesNotRequireAuth(t *testing.T) {
	srv := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /metrics without auth, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "siteprobe_retry_disabled") {
		t.Errorf("expected supervisor gauges in /metrics output, got:\n%s", rec.Body.String())
	}
}

func TestStatusReturns404ForUnknownJob(t *testing.T) {
	srv := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown job ID, got %d", rec.Code)
	}
}

func TestPauseReturns404ForUnknownJob(t *testing.T) {
	srv := newTestServer("")
	req := httptest.NewRequest(http.MethodPost, "/pause/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 pausing an unknown job, got %d", rec.Code)
	}
}
