package api_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t      *testing.T
	db     *gorm.DB
	auth   *service.AuthService
	router *gin.Engine
}

func setupTestRouter(t *testing.T, opts api.Options) *testAPI {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	store, err := storage.NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)

	images := service.NewImageService(store, 1<<20)
	auth := service.NewAuthService(db, "test-secret", time.Hour, nil)
	favorites := service.NewFavoriteService(db)
	carts := service.NewShoppingCartService(db)

	if opts.Pagination.DefaultLimit == 0 {
		opts.Pagination = config.PaginationConfig{DefaultLimit: 6, MaxLimit: 100}
	}

	router := gin.New()
	router.Use(middleware.RequestContext(), middleware.Recovery())
	api.SetupAPI(router, api.Services{
		Auth:          auth,
		Users:         service.NewUserService(db, images),
		Tags:          service.NewTagService(db),
		Ingredients:   service.NewIngredientService(db),
		Recipes:       service.NewRecipeService(db, images, favorites, carts),
		Favorites:     favorites,
		ShoppingCart:  carts,
		ShoppingList:  service.NewShoppingListService(db),
		Subscriptions: service.NewSubscriptionService(db),
	}, opts)

	return &testAPI{t: t, db: db, auth: auth, router: router}
}

// tokenFor issues a token for a fresh fixture user.
func (a *testAPI) tokenFor(u *models.User) string {
	a.t.Helper()
	token, err := a.auth.GenerateToken(u)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func requireStatus(t *testing.T, want int, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, w.Code, "body: %s", w.Body.String())
}
