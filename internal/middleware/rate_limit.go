package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/metrics"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Name labels metrics and log lines.
	Name string
	// Window is the time window for rate limiting
	Window time.Duration
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Key prefix for Redis keys
	KeyPrefix string
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Config() RateLimitConfig
}

// NewLimiter uses redis when a client is available so limits hold across
// replicas, and an in-process limiter otherwise.
func NewLimiter(client *redis.Client, cfg RateLimitConfig) Limiter {
	if client == nil {
		return NewMemoryLimiter(cfg)
	}
	return NewRedisLimiter(client, cfg)
}

// NewRecipeCreationLimiter limits recipe creation per user.
func NewRecipeCreationLimiter(client *redis.Client, perHour int) Limiter {
	return NewLimiter(client, RateLimitConfig{
		Name:      "recipe_creation",
		Window:    time.Hour,
		Limit:     perHour,
		KeyPrefix: "rate_limit:recipe_creation",
	})
}

// NewRecipeModificationLimiter limits changes per user and recipe.
func NewRecipeModificationLimiter(client *redis.Client, perHour int) Limiter {
	return NewLimiter(client, RateLimitConfig{
		Name:      "recipe_modification",
		Window:    time.Hour,
		Limit:     perHour,
		KeyPrefix: "rate_limit:recipe_modification",
	})
}

// RedisLimiter is a fixed-window counter in redis.
type RedisLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
}

func NewRedisLimiter(client *redis.Client, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{redis: client, config: cfg}
}

func (rl *RedisLimiter) Config() RateLimitConfig { return rl.config }

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	windowStart := time.Now().Truncate(rl.config.Window)
	redisKey := fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, key, windowStart.Unix())

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := int(incr.Val())
	return Decision{
		Allowed:   count <= rl.config.Limit,
		Limit:     rl.config.Limit,
		Remaining: max(rl.config.Limit-count, 0),
		Reset:     windowStart.Add(rl.config.Window),
	}, nil
}

// MemoryLimiter is a per-key token bucket refilled at Limit per Window.
type MemoryLimiter struct {
	config RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
	sweep   time.Time
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{
		config:  cfg,
		buckets: make(map[string]*bucket),
		sweep:   time.Now(),
	}
}

func (ml *MemoryLimiter) Config() RateLimitConfig { return ml.config }

func (ml *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := time.Now()
	every := ml.config.Window / time.Duration(max(ml.config.Limit, 1))

	ml.mu.Lock()
	defer ml.mu.Unlock()

	// idle buckets are full again, so dropping them changes nothing
	if now.Sub(ml.sweep) > ml.config.Window {
		for k, b := range ml.buckets {
			if now.Sub(b.seen) > ml.config.Window {
				delete(ml.buckets, k)
			}
		}
		ml.sweep = now
	}

	b, ok := ml.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), ml.config.Limit)}
		ml.buckets[key] = b
	}
	b.seen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	remaining := max(int(tokens), 0)
	reset := now
	if missing := float64(ml.config.Limit) - tokens; missing > 0 {
		reset = now.Add(time.Duration(missing * float64(every)))
	}

	return Decision{
		Allowed:   allowed,
		Limit:     ml.config.Limit,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// KeyFunc derives the limiter key from a request. An empty key skips the
// check.
type KeyFunc func(c *gin.Context) string

// ByUser keys on the authenticated user.
func ByUser(c *gin.Context) string {
	if id := CurrentUserID(c); id != 0 {
		return strconv.FormatUint(uint64(id), 10)
	}
	return ""
}

// ByUserAndParam keys on the authenticated user and a path parameter.
func ByUserAndParam(param string) KeyFunc {
	return func(c *gin.Context) string {
		user := ByUser(c)
		if user == "" {
			return ""
		}
		return user + ":" + c.Param(param)
	}
}

// RateLimit enforces limiter on requests keyed by key. Limiter errors are
// logged and the request is let through.
func RateLimit(limiter Limiter, key KeyFunc) gin.HandlerFunc {
	cfg := limiter.Config()
	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			c.Next()
			return
		}

		d, err := limiter.Allow(c.Request.Context(), k)
		if err != nil {
			logging.Ctx(c.Request.Context()).Warn().Err(err).Str("limiter", cfg.Name).Msg("rate limit check failed")
			c.Header("X-RateLimit-Error", "rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			metrics.RateLimitRejectionsTotal.WithLabelValues(cfg.Name).Inc()
			retry := int(time.Until(d.Reset).Seconds())
			c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate_limited",
				Message: fmt.Sprintf("Request limit of %d per %v exceeded.", cfg.Limit, cfg.Window),
			})
			return
		}

		c.Next()
	}
}
