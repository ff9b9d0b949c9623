// Package server assembles the HTTP stack and owns the http.Server lifecycle.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
)

// bodyOverhead leaves room for the JSON around a base64 image.
const bodyOverhead = 64 << 10

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *gorm.DB
	redis  *redis.Client
}

// New wires services, middleware and routes. rdb may be nil, in which case
// rate limits and token revocation stay in process.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, store storage.Store) *Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestContext(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	images := service.NewImageService(store, cfg.Storage.MaxImageBytes)
	favorites := service.NewFavoriteService(db)
	carts := service.NewShoppingCartService(db)
	services := api.Services{
		Auth:          service.NewAuthService(db, cfg.JWT.Secret, cfg.JWT.TTL, service.NewTokenDenylist(rdb)),
		Users:         service.NewUserService(db, images),
		Tags:          service.NewTagService(db),
		Ingredients:   service.NewIngredientService(db),
		Recipes:       service.NewRecipeService(db, images, favorites, carts),
		Favorites:     favorites,
		ShoppingCart:  carts,
		ShoppingList:  service.NewShoppingListService(db),
		Subscriptions: service.NewSubscriptionService(db),
	}

	opts := api.Options{
		Pagination:   cfg.Pagination,
		PublicURL:    cfg.Server.PublicURL,
		MaxBodyBytes: cfg.Storage.MaxImageBytes/3*4 + bodyOverhead,
	}
	if n := cfg.RateLimit.RecipeCreatePerHour; n > 0 {
		opts.CreateLimiter = middleware.NewRecipeCreationLimiter(rdb, n)
	}
	if n := cfg.RateLimit.RecipeModifyPerHour; n > 0 {
		opts.ModifyLimiter = middleware.NewRecipeModificationLimiter(rdb, n)
	}

	s := &Server{router: router, db: db, redis: rdb}

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if local, ok := store.(*storage.LocalStore); ok && strings.HasPrefix(cfg.Storage.MediaURL, "/") {
		router.Static(strings.TrimRight(cfg.Storage.MediaURL, "/"), local.Root())
	}
	api.SetupAPI(router, services, opts)

	s.http = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.http.Addr).Msg("starting http server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true
	if err := database.HealthCheck(ctx, s.db); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("database health check failed")
		checks["database"] = "unavailable"
		healthy = false
	}
	if s.redis != nil {
		checks["redis"] = "ok"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("redis health check failed")
			checks["redis"] = "unavailable"
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
