package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func TestRegisterLoginLogout(t *testing.T) {
	a := setupTestRouter(t, api.Options{})

	w := a.do(http.MethodPost, "/api/users/", "", map[string]string{
		"email":      "chef@example.com",
		"username":   "chef",
		"first_name": "Julia",
		"last_name":  "Child",
		"password":   "bon-appetit",
	})
	requireStatus(t, http.StatusCreated, w)
	user := decode[types.UserResponse](t, w)
	assert.Equal(t, "chef", user.Username)
	assert.NotContains(t, w.Body.String(), "password")

	w = a.do(http.MethodPost, "/api/auth/token/login/", "", map[string]string{"email": "chef@example.com", "password": "wrong-one"})
	requireStatus(t, http.StatusBadRequest, w)

	w = a.do(http.MethodPost, "/api/auth/token/login/", "", map[string]string{"email": "chef@example.com", "password": "bon-appetit"})
	requireStatus(t, http.StatusOK, w)
	token := decode[types.TokenResponse](t, w).AuthToken
	require.NotEmpty(t, token)

	w = a.do(http.MethodGet, "/api/users/me/", token, nil)
	requireStatus(t, http.StatusOK, w)
	assert.Equal(t, user.ID, decode[types.UserResponse](t, w).ID)

	requireStatus(t, http.StatusNoContent, a.do(http.MethodPost, "/api/auth/token/logout/", token, nil))
	requireStatus(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/users/me/", token, nil))
}

func TestUserEndpoints(t *testing.T) {
	a := setupTestRouter(t, api.Options{})
	me := testhelpers.CreateUser(t, a.db)
	author := testhelpers.CreateUser(t, a.db)
	token := a.tokenFor(me)
	for i := 0; i < 3; i++ {
		testhelpers.CreateRecipe(t, a.db, author, nil)
	}

	t.Run("list users", func(t *testing.T) {
		w := a.do(http.MethodGet, "/api/users/", "", nil)
		requireStatus(t, http.StatusOK, w)
		assert.EqualValues(t, 2, decode[types.Page[types.UserResponse]](t, w).Count)
	})

	t.Run("unknown user", func(t *testing.T) {
		requireStatus(t, http.StatusNotFound, a.do(http.MethodGet, "/api/users/999/", "", nil))
	})

	t.Run("set password", func(t *testing.T) {
		w := a.do(http.MethodPost, "/api/users/set_password/", token, map[string]string{
			"current_password": testhelpers.DefaultPassword,
			"new_password":     "another-secret",
		})
		requireStatus(t, http.StatusNoContent, w)
	})

	t.Run("avatar", func(t *testing.T) {
		w := a.do(http.MethodPut, "/api/users/me/avatar/", token, map[string]string{"avatar": "https://cdn.example.com/me.png"})
		requireStatus(t, http.StatusOK, w)
		assert.Equal(t, "https://cdn.example.com/me.png", *decode[types.AvatarResponse](t, w).Avatar)

		requireStatus(t, http.StatusNoContent, a.do(http.MethodDelete, "/api/users/me/avatar/", token, nil))
		requireStatus(t, http.StatusBadRequest, a.do(http.MethodPut, "/api/users/me/avatar/", token, map[string]string{}))
	})

	subscribe := fmt.Sprintf("/api/users/%d/subscribe/", author.ID)

	t.Run("subscribe", func(t *testing.T) {
		w := a.do(http.MethodPost, subscribe+"?recipes_limit=2", token, nil)
		requireStatus(t, http.StatusCreated, w)
		sub := decode[types.SubscriptionResponse](t, w)
		assert.True(t, sub.IsSubscribed)
		assert.Len(t, sub.Recipes, 2)
		assert.EqualValues(t, 3, sub.RecipesCount)

		w = a.do(http.MethodPost, subscribe, token, nil)
		requireStatus(t, http.StatusBadRequest, w)
		body := decode[errorBody](t, w)
		assert.Equal(t, "conflict", body.Error)
		assert.Equal(t, "You are already subscribed to this user.", body.Message)

		w = a.do(http.MethodPost, fmt.Sprintf("/api/users/%d/subscribe/", me.ID), token, nil)
		requireStatus(t, http.StatusBadRequest, w)
		assert.Equal(t, "You cannot subscribe to yourself.", decode[errorBody](t, w).Message)

		requireStatus(t, http.StatusNotFound, a.do(http.MethodPost, "/api/users/999/subscribe/", token, nil))
	})

	t.Run("subscriptions list", func(t *testing.T) {
		w := a.do(http.MethodGet, "/api/users/subscriptions/?recipes_limit=1", token, nil)
		requireStatus(t, http.StatusOK, w)
		page := decode[types.Page[types.SubscriptionResponse]](t, w)
		require.Len(t, page.Results, 1)
		assert.Len(t, page.Results[0].Recipes, 1)
		assert.EqualValues(t, 3, page.Results[0].RecipesCount)

		w = a.do(http.MethodGet, "/api/users/subscriptions/?recipes_limit=abc", token, nil)
		requireStatus(t, http.StatusBadRequest, w)
		assert.Contains(t, decode[errorBody](t, w).Fields, "recipes_limit")

		requireStatus(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/users/subscriptions/", "", nil))
	})

	t.Run("is_subscribed on profile", func(t *testing.T) {
		w := a.do(http.MethodGet, fmt.Sprintf("/api/users/%d/", author.ID), token, nil)
		requireStatus(t, http.StatusOK, w)
		assert.True(t, decode[types.UserResponse](t, w).IsSubscribed)
	})

	t.Run("unsubscribe", func(t *testing.T) {
		requireStatus(t, http.StatusNoContent, a.do(http.MethodDelete, subscribe, token, nil))
		requireStatus(t, http.StatusBadRequest, a.do(http.MethodDelete, subscribe, token, nil))
	})
}

func TestCatalogEndpoints(t *testing.T) {
	a := setupTestRouter(t, api.Options{})
	tag := testhelpers.CreateTag(t, a.db, "vegan")
	testhelpers.CreateIngredient(t, a.db, "butter", "g")
	testhelpers.CreateIngredient(t, a.db, "bread", "pcs")
	testhelpers.CreateIngredient(t, a.db, "apple", "pcs")

	w := a.do(http.MethodGet, "/api/tags/", "", nil)
	requireStatus(t, http.StatusOK, w)
	assert.Len(t, decode[[]types.TagResponse](t, w), 1)

	w = a.do(http.MethodGet, fmt.Sprintf("/api/tags/%d/", tag.ID), "", nil)
	requireStatus(t, http.StatusOK, w)
	assert.Equal(t, "vegan", decode[types.TagResponse](t, w).Slug)

	w = a.do(http.MethodGet, "/api/ingredients/?name=B", "", nil)
	requireStatus(t, http.StatusOK, w)
	items := decode[[]types.IngredientResponse](t, w)
	require.Len(t, items, 2)
	assert.Equal(t, "bread", items[0].Name)

	requireStatus(t, http.StatusNotFound, a.do(http.MethodGet, "/api/ingredients/999/", "", nil))
}

func TestServiceFailureIsInternalError(t *testing.T) {
	auth := new(testhelpers.MockAuthService)
	auth.On("ValidateToken", mock.Anything, "token").Return(&types.TokenClaims{UserID: 5}, nil)
	shopping := new(testhelpers.MockShoppingListService)
	shopping.On("Download", mock.Anything, uint(5)).Return("", errors.New("database is gone"))

	router := gin.New()
	router.Use(middleware.RequestContext())
	api.SetupAPI(router, api.Services{Auth: auth, ShoppingList: shopping}, api.Options{
		Pagination: config.PaginationConfig{DefaultLimit: 6, MaxLimit: 100},
	})

	a := &testAPI{t: t, router: router}
	w := a.do(http.MethodGet, "/api/recipes/download_shopping_cart/", "token", nil)
	requireStatus(t, http.StatusInternalServerError, w)
	assert.Equal(t, "internal_error", decode[errorBody](t, w).Error)
	assert.NotContains(t, w.Body.String(), "database is gone")

	shopping.AssertExpectations(t)
}
