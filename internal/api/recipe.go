package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

type RecipeHandler struct {
	recipes      service.IRecipeService
	favorites    service.IRelationService
	cart         service.IRelationService
	shoppingList service.IShoppingListService
	pager        pager
	opts         Options
	requireAuth  gin.HandlerFunc
	optionalAuth gin.HandlerFunc
}

func NewRecipeHandler(s Services, p pager, opts Options, requireAuth, optionalAuth gin.HandlerFunc) *RecipeHandler {
	return &RecipeHandler{
		recipes:      s.Recipes,
		favorites:    s.Favorites,
		cart:         s.ShoppingCart,
		shoppingList: s.ShoppingList,
		pager:        p,
		opts:         opts,
		requireAuth:  requireAuth,
		optionalAuth: optionalAuth,
	}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	createLimit := limit(h.opts.CreateLimiter, middleware.ByUser)
	modifyLimit := limit(h.opts.ModifyLimiter, middleware.ByUserAndParam("id"))

	recipes := router.Group("/recipes")
	{
		recipes.GET("/", h.optionalAuth, h.List)
		recipes.POST("/", h.requireAuth, createLimit, h.Create)
		recipes.GET("/download_shopping_cart/", h.requireAuth, h.DownloadShoppingCart)
		recipes.GET("/:id/", h.optionalAuth, h.Get)
		recipes.PATCH("/:id/", h.requireAuth, modifyLimit, h.Update)
		recipes.DELETE("/:id/", h.requireAuth, modifyLimit, h.Delete)
		recipes.GET("/:id/get-link/", h.GetLink)
		recipes.POST("/:id/favorite/", h.requireAuth, h.relationAdd(h.favorites))
		recipes.DELETE("/:id/favorite/", h.requireAuth, h.relationRemove(h.favorites))
		recipes.POST("/:id/shopping_cart/", h.requireAuth, h.relationAdd(h.cart))
		recipes.DELETE("/:id/shopping_cart/", h.requireAuth, h.relationRemove(h.cart))
	}
}

func (h *RecipeHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, ok := h.pager.parse(c)
	if !ok {
		return
	}
	recipes, total, err := h.recipes.List(c.Request.Context(), filter, page, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(h.pager, c, page, recipes, total)
}

func parseFilter(c *gin.Context) (types.RecipeFilter, error) {
	var f types.RecipeFilter
	if raw := c.Query("author"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 0)
		if err != nil {
			return f, apperror.ValidationFailed("author", "Select a valid choice.")
		}
		f.AuthorID = uint(id)
	}
	for _, slug := range c.QueryArray("tags") {
		if slug = strings.TrimSpace(slug); slug != "" {
			f.TagSlugs = append(f.TagSlugs, slug)
		}
	}
	f.IsFavorited = truthy(c.Query("is_favorited"))
	f.IsInShoppingCart = truthy(c.Query("is_in_shopping_cart"))
	return f, nil
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// readBody reads a JSON body within the configured size cap.
func (h *RecipeHandler) readBody(c *gin.Context) ([]byte, bool) {
	r := io.Reader(c.Request.Body)
	if h.opts.MaxBodyBytes > 0 {
		r = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBodyBytes)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, middleware.ErrorResponse{
				Error:   "payload_too_large",
				Message: fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit),
			})
			return nil, false
		}
		badJSON(c)
		return nil, false
	}
	return body, true
}

func (h *RecipeHandler) Create(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	recipe, err := h.recipes.Create(c.Request.Context(), middleware.CurrentUserID(c), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	recipe, err := h.recipes.Get(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	recipe, err := h.recipes.Update(c.Request.Context(), middleware.CurrentUserID(c), id, body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.recipes.Delete(c.Request.Context(), middleware.CurrentUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLink returns an absolute link to the recipe.
func (h *RecipeHandler) GetLink(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.recipes.Exists(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	link := fmt.Sprintf("%s/api/recipes/%d/", baseURL(c, h.opts.PublicURL), id)
	c.JSON(http.StatusOK, types.ShortLinkResponse{ShortLink: link})
}

func (h *RecipeHandler) relationAdd(rel service.IRelationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		short, err := rel.Add(c.Request.Context(), middleware.CurrentUserID(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, short)
	}
}

func (h *RecipeHandler) relationRemove(rel service.IRelationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := rel.Remove(c.Request.Context(), middleware.CurrentUserID(c), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	text, err := h.shoppingList.Download(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, service.ShoppingListFilename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}
