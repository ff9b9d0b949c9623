package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// UserHandler serves accounts and subscriptions.
type UserHandler struct {
	users         service.IUserService
	subscriptions service.ISubscriptionService
	pager         pager
	maxBody       int64
	requireAuth   gin.HandlerFunc
	optionalAuth  gin.HandlerFunc
}

func NewUserHandler(users service.IUserService, subscriptions service.ISubscriptionService, p pager, maxBody int64, requireAuth, optionalAuth gin.HandlerFunc) *UserHandler {
	return &UserHandler{
		users:         users,
		subscriptions: subscriptions,
		pager:         p,
		maxBody:       maxBody,
		requireAuth:   requireAuth,
		optionalAuth:  optionalAuth,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("/", h.optionalAuth, h.List)
		users.POST("/", h.Register)
		users.GET("/me/", h.requireAuth, h.Me)
		users.POST("/set_password/", h.requireAuth, h.SetPassword)
		users.PUT("/me/avatar/", h.requireAuth, h.SetAvatar)
		users.DELETE("/me/avatar/", h.requireAuth, h.DeleteAvatar)
		users.GET("/subscriptions/", h.requireAuth, h.Subscriptions)
		users.GET("/:id/", h.optionalAuth, h.Get)
		users.POST("/:id/subscribe/", h.requireAuth, h.Subscribe)
		users.DELETE("/:id/subscribe/", h.requireAuth, h.Unsubscribe)
	}
}

func (h *UserHandler) List(c *gin.Context) {
	page, ok := h.pager.parse(c)
	if !ok {
		return
	}
	users, total, err := h.users.List(c.Request.Context(), page, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(h.pager, c, page, users, total)
}

func (h *UserHandler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Me(c *gin.Context) {
	uid := middleware.CurrentUserID(c)
	user, err := h.users.Get(c.Request.Context(), uid, uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) SetPassword(c *gin.Context) {
	var req types.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	if err := h.users.SetPassword(c.Request.Context(), middleware.CurrentUserID(c), req); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) SetAvatar(c *gin.Context) {
	if h.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}
	var req types.AvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	resp, err := h.users.SetAvatar(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) DeleteAvatar(c *gin.Context) {
	if err := h.users.DeleteAvatar(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Subscriptions(c *gin.Context) {
	recipesLimit, err := service.ParseRecipesLimit(c.Query("recipes_limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	page, ok := h.pager.parse(c)
	if !ok {
		return
	}
	subs, total, err := h.subscriptions.List(c.Request.Context(), middleware.CurrentUserID(c), page, recipesLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(h.pager, c, page, subs, total)
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	recipesLimit, err := service.ParseRecipesLimit(c.Query("recipes_limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	sub, err := h.subscriptions.Subscribe(c.Request.Context(), middleware.CurrentUserID(c), id, recipesLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *UserHandler) Unsubscribe(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.subscriptions.Unsubscribe(c.Request.Context(), middleware.CurrentUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
