// Package api exposes the services over HTTP.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
)

// Services are the handlers' dependencies.
type Services struct {
	Auth          service.IAuthService
	Users         service.IUserService
	Tags          service.ITagService
	Ingredients   service.IIngredientService
	Recipes       service.IRecipeService
	Favorites     service.IRelationService
	ShoppingCart  service.IRelationService
	ShoppingList  service.IShoppingListService
	Subscriptions service.ISubscriptionService
}

type Options struct {
	Pagination config.PaginationConfig
	// PublicURL overrides the request host in absolute links.
	PublicURL string
	// MaxBodyBytes caps recipe and avatar payloads.
	MaxBodyBytes int64
	// Limiters are optional; nil disables the limit.
	CreateLimiter middleware.Limiter
	ModifyLimiter middleware.Limiter
}

// SetupAPI mounts every handler under /api.
func SetupAPI(router *gin.Engine, s Services, opts Options) {
	group := router.Group("/api")

	requireAuth := middleware.AuthMiddleware(s.Auth)
	optionalAuth := middleware.OptionalAuth(s.Auth)
	p := pager{cfg: opts.Pagination, publicURL: opts.PublicURL}

	NewAuthHandler(s.Auth, requireAuth).RegisterRoutes(group)
	NewUserHandler(s.Users, s.Subscriptions, p, opts.MaxBodyBytes, requireAuth, optionalAuth).RegisterRoutes(group)
	NewCatalogHandler(s.Tags, s.Ingredients).RegisterRoutes(group)
	NewRecipeHandler(s, p, opts, requireAuth, optionalAuth).RegisterRoutes(group)
}

func limit(l middleware.Limiter, key middleware.KeyFunc) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(l, key)
}
