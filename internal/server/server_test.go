package server_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Host: "127.0.0.1", Port: "0", Mode: "test", ReadTimeout: time.Second, WriteTimeout: time.Second},
		JWT:        config.JWTConfig{Secret: "test-secret", TTL: time.Hour},
		Storage:    config.StorageConfig{Backend: "local", MediaURL: "/media/", MaxImageBytes: 1 << 20},
		RateLimit:  config.RateLimitConfig{RecipeCreatePerHour: 5, RecipeModifyPerHour: 5},
		CORS:       config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Pagination: config.PaginationConfig{DefaultLimit: 6, MaxLimit: 100},
	}
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNew(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	root := t.TempDir()
	store, err := storage.NewLocalStore(root, "/media/")
	require.NoError(t, err)

	srv := server.New(testConfig(), db, nil, store)
	h := srv.Handler()

	t.Run("health", func(t *testing.T) {
		w := get(t, h, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"ok"`)
		assert.NotContains(t, w.Body.String(), "redis")
	})

	t.Run("metrics", func(t *testing.T) {
		get(t, h, "/api/tags/")
		w := get(t, h, "/metrics")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), "foodgram_http_requests_total"))
	})

	t.Run("media", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "recipes"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "recipes", "a.txt"), []byte("hi"), 0o644))
		w := get(t, h, "/media/recipes/a.txt")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hi", w.Body.String())
	})

	t.Run("cors", func(t *testing.T) {
		w := get(t, h, "/api/tags/", "Origin", "http://localhost:3000")
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("api is mounted", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get(t, h, "/api/recipes/").Code)
		assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/users/me/").Code)
	})
}

func TestHealthReportsDatabaseOutage(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	store, err := storage.NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)
	srv := server.New(testConfig(), db, nil, store)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"unavailable"`)
}
