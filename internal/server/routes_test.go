package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/internal/auth"
	"github.com/result-system/apiserver/internal/handlers"
	"github.com/result-system/apiserver/internal/metrics"
	"github.com/result-system/apiserver/internal/ratelimit"
)

func newTestRouter(t *testing.T, assetsDir string) http.Handler {
	t.Helper()
	log := zap.NewNop()
	m := metrics.New()
	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:   "a",
		RefreshSecret:  "r",
		AccessExpires:  "15m",
		RefreshExpires: "7d",
	})
	require.NoError(t, err)

	return NewRouter(RouterDeps{
		Log:          log,
		Metrics:      m,
		Codec:        codec,
		AuthHandler:  handlers.NewAuthHandler(nil, nil, m, log, true),
		AdminHandler: handlers.NewAdminHandler(nil, nil, log),
		AssetsDir:    assetsDir,
		ClientURL:    "https://results.example.com/",
	})
}

func TestHealthzAndMetrics(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "result_system_http_request_duration_seconds")
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp handlers.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	router := newTestRouter(t, "")

	for _, target := range []string{"/api/v1/admin/users", "/api/v1/auth/logout"} {
		method := http.MethodGet
		if target == "/api/v1/auth/logout" {
			method = http.MethodPost
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestAssetsAreServed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "avatars"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avatars", "a.txt"), []byte("hi"), 0o644))
	router := newTestRouter(t, dir)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/avatars/a.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "https://results.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://results.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func newLoginRouter(t *testing.T, trustProxy bool) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zap.NewNop()
	m := metrics.New()
	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:   "a",
		RefreshSecret:  "r",
		AccessExpires:  "15m",
		RefreshExpires: "7d",
	})
	require.NoError(t, err)

	limiter := ratelimit.New(rdb, "login", 5, 15*time.Minute)
	return NewRouter(RouterDeps{
		Log:          log,
		Metrics:      m,
		Codec:        codec,
		AuthHandler:  handlers.NewAuthHandler(nil, limiter, m, log, true),
		AdminHandler: handlers.NewAdminHandler(nil, nil, log),
		TrustProxy:   trustProxy,
	})
}

// loginFrom posts an empty login from one socket; validation rejects it
// after the limiter has counted the attempt.
func loginFrom(router http.Handler, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestLoginLimitKeysOnSocketAddress(t *testing.T) {
	router := newLoginRouter(t, false)

	limited := 0
	for i := 0; i < 20; i++ {
		code := loginFrom(router, "198.51.100."+strconv.Itoa(i+1))
		if i < 5 {
			require.Equal(t, http.StatusUnprocessableEntity, code, "attempt %d", i+1)
		}
		if code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 15, limited)
}

func TestLoginLimitUsesForwardedAddressBehindProxy(t *testing.T) {
	router := newLoginRouter(t, true)

	for i := 0; i < 10; i++ {
		code := loginFrom(router, "198.51.100."+strconv.Itoa(i+1))
		assert.Equal(t, http.StatusUnprocessableEntity, code, "attempt %d", i+1)
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnprocessableEntity, loginFrom(router, "203.0.113.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(router, "203.0.113.1"))
}
