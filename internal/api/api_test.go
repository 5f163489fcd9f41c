package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklane/todo-api/internal/auth"
	"github.com/tasklane/todo-api/internal/config"
	"github.com/tasklane/todo-api/internal/ratelimit"
	"github.com/tasklane/todo-api/internal/store"
	"github.com/tasklane/todo-api/internal/testutil"
	"github.com/tasklane/todo-api/internal/validation"
)

const testSecret = "test-secret-0123456789abcdef"

func testConfig() config.Config {
	cfg := config.Config{APIPort: 8080}
	cfg.Auth = config.AuthConfig{JWTSecret: testSecret, AccessTTL: time.Hour, RefreshTTL: 72 * time.Hour}
	cfg.RateLimit = config.RateLimitConfig{Limit: 1000, Window: time.Minute}
	cfg.CORS.AllowedOrigins = []string{"*"}
	return cfg
}

func testDeps(t *testing.T, cfg config.Config) Deps {
	t.Helper()
	s := store.New(testutil.OpenInMemoryDB(t))
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	return Deps{
		Todos:     s,
		Auth:      auth.NewService(s, tokens, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		Tokens:    tokens,
		Validator: validation.New(),
		Counters:  ratelimit.NewMemoryStore(),
	}
}

func TestNewApi(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := testConfig()
		apiInstance, err := NewApi(cfg, testDeps(t, cfg))
		require.NoError(t, err)
		assert.Equal(t, 8080, apiInstance.Config.APIPort)
		assert.NotNil(t, apiInstance.Router)
	})

	t.Run("InvalidConfigZeroPort", func(t *testing.T) {
		cfg := testConfig()
		cfg.APIPort = 0
		_, err := NewApi(cfg, testDeps(t, cfg))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Must have at least a port to start API")
	})

	t.Run("MissingDependencies", func(t *testing.T) {
		cfg := testConfig()
		deps := testDeps(t, cfg)
		deps.Counters = nil
		_, err := NewApi(cfg, deps)
		assert.Error(t, err)
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServe(t *testing.T) {
	cfg := testConfig()
	cfg.APIPort = freePort(t)
	api, err := NewApi(cfg, testDeps(t, cfg))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Serve(ctx) }()

	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.APIPort)) + "/heartbeat"
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get(url)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRouting(t *testing.T) {
	cfg := testConfig()
	api, err := NewApi(cfg, testDeps(t, cfg))
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		path    string
		code    int
		message string
	}{
		{"UnknownPath", http.MethodGet, "/nonexistent", http.StatusNotFound, "Not found"},
		{"WrongMethod", http.MethodPatch, "/todos", http.StatusMethodNotAllowed, "Method not allowed"},
		{"TodosNeedToken", http.MethodGet, "/todos", http.StatusUnauthorized, "Unauthorized"},
		{"RefreshNeedsToken", http.MethodPost, "/refresh", http.StatusUnauthorized, "Unauthorized"},
		{"TrailingSlash", http.MethodGet, "/todos/", http.StatusUnauthorized, "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.Router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestHeartbeatIsNotRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Limit = 1
	api, err := NewApi(cfg, testDeps(t, cfg))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		api.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Limit = 2
	api, err := NewApi(cfg, testDeps(t, cfg))
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/todos", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		api.Router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	api, err := NewApi(cfg, testDeps(t, cfg))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/todos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, X-Client-Version")
	rec := httptest.NewRecorder()
	api.Router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	allowed := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, allowed, "authorization")
	assert.Contains(t, allowed, "x-client-version")
}
