package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pageza/foodgram/backend/internal/middleware"
)

func limitedRouter(limiter middleware.Limiter, userID uint) *gin.Engine {
	r := gin.New()
	r.POST("/recipes/:id", func(c *gin.Context) {
		c.Set("user_id", userID)
	}, middleware.RateLimit(limiter, middleware.ByUserAndParam("id")), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func hit(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
	return w
}

func TestMemoryLimiterBlocksAfterBurst(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(middleware.RateLimitConfig{
		Name:   "test",
		Window: time.Hour,
		Limit:  2,
	})
	router := limitedRouter(limiter, 1)

	first := hit(router, "/recipes/1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, hit(router, "/recipes/1").Code)

	blocked := hit(router, "/recipes/1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "0", blocked.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// another recipe has its own budget
	assert.Equal(t, http.StatusOK, hit(router, "/recipes/2").Code)
}

func TestRateLimitSkipsAnonymous(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(middleware.RateLimitConfig{Name: "test", Window: time.Hour, Limit: 1})
	router := limitedRouter(limiter, 0)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(router, "/recipes/1").Code)
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	limiter := middleware.NewRedisLimiter(client, middleware.RateLimitConfig{
		Name:      "test",
		Window:    time.Hour,
		Limit:     1,
		KeyPrefix: "test",
	})

	_, err := limiter.Allow(context.Background(), "1")
	require.Error(t, err)

	w := hit(limitedRouter(limiter, 1), "/recipes/1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rate limit check failed", w.Header().Get("X-RateLimit-Error"))
}

func TestRedisLimiter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed, skipping container-based test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	limiter := middleware.NewRecipeCreationLimiter(client, 2)
	for i, want := range []bool{true, true, false} {
		d, err := limiter.Allow(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, want, d.Allowed, "request %d", i+1)
	}
}
