package service_test

import (
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

const testSecret = "test-secret"

type env struct {
	db            *gorm.DB
	store         *storage.LocalStore
	images        *service.ImageService
	auth          *service.AuthService
	users         *service.UserService
	recipes       *service.RecipeService
	favorites     *service.RelationService[models.Favorite]
	carts         *service.RelationService[models.ShoppingCart]
	shopping      *service.ShoppingListService
	subscriptions *service.SubscriptionService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	store, err := storage.NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)

	images := service.NewImageService(store, 1<<20)
	favorites := service.NewFavoriteService(db)
	carts := service.NewShoppingCartService(db)
	return &env{
		db:            db,
		store:         store,
		images:        images,
		auth:          service.NewAuthService(db, testSecret, time.Hour, nil),
		users:         service.NewUserService(db, images),
		recipes:       service.NewRecipeService(db, images, favorites, carts),
		favorites:     favorites,
		carts:         carts,
		shopping:      service.NewShoppingListService(db),
		subscriptions: service.NewSubscriptionService(db),
	}
}

// pngDataURI is a data URI whose payload sniffs as image/png.
func pngDataURI() string {
	data := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func requireKind(t *testing.T, err error, kind error) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *apperror.AppError, got %T", err)
	return appErr
}

// onDisk maps a stored media URL to its file under the local store.
func (e *env) onDisk(url string) string {
	return filepath.Join(e.store.Root(), strings.TrimPrefix(url, "/media/"))
}

// insertBeforeCreate runs query inside the transaction of the next insert into
// table, as if a concurrent request committed the same row right after the
// existence check.
func insertBeforeCreate(t *testing.T, db *gorm.DB, table, query string, args ...any) {
	t.Helper()
	name := "test:insert_before_create:" + table
	var once sync.Once
	err := db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		once.Do(func() {
			if err := tx.Session(&gorm.Session{NewDB: true}).Exec(query, args...).Error; err != nil {
				_ = tx.AddError(err)
			}
		})
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Callback().Create().Remove(name) })
}
