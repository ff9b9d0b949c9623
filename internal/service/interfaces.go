package service

import (
	"context"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// IAuthService defines the interface for authentication operations
type IAuthService interface {
	Login(ctx context.Context, req types.LoginRequest) (string, error)
	ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error)
	Logout(ctx context.Context, claims *types.TokenClaims) error
}

// IUserService defines the interface for user account operations
type IUserService interface {
	Register(ctx context.Context, req types.RegisterRequest) (*types.UserResponse, error)
	Get(ctx context.Context, id, viewerID uint) (*types.UserResponse, error)
	List(ctx context.Context, page Page, viewerID uint) ([]types.UserResponse, int64, error)
	SetPassword(ctx context.Context, userID uint, req types.SetPasswordRequest) error
	SetAvatar(ctx context.Context, userID uint, req types.AvatarRequest) (*types.AvatarResponse, error)
	DeleteAvatar(ctx context.Context, userID uint) error
}

type ITagService interface {
	List(ctx context.Context) ([]types.TagResponse, error)
	Get(ctx context.Context, id uint) (*types.TagResponse, error)
}

type IIngredientService interface {
	List(ctx context.Context, namePrefix string) ([]types.IngredientResponse, error)
	Get(ctx context.Context, id uint) (*types.IngredientResponse, error)
}

// IRecipeService defines the interface for recipe operations. Writes take the
// raw request body so key presence can be checked.
type IRecipeService interface {
	Create(ctx context.Context, authorID uint, body []byte) (*types.RecipeResponse, error)
	Update(ctx context.Context, userID, recipeID uint, body []byte) (*types.RecipeResponse, error)
	Delete(ctx context.Context, userID, recipeID uint) error
	Get(ctx context.Context, id, viewerID uint) (*types.RecipeResponse, error)
	List(ctx context.Context, filter types.RecipeFilter, page Page, viewerID uint) ([]types.RecipeResponse, int64, error)
	Exists(ctx context.Context, id uint) error
}

// IRelationService toggles a (user, recipe) pair such as a favorite or a
// shopping cart entry.
type IRelationService interface {
	Add(ctx context.Context, userID, recipeID uint) (*types.RecipeShortResponse, error)
	Remove(ctx context.Context, userID, recipeID uint) error
	Contains(ctx context.Context, userID uint, recipeIDs []uint) (map[uint]bool, error)
}

type IShoppingListService interface {
	Aggregate(ctx context.Context, userID uint) ([]types.ShoppingListItem, error)
	Download(ctx context.Context, userID uint) (string, error)
}

type ISubscriptionService interface {
	Subscribe(ctx context.Context, userID, authorID uint, recipesLimit *int) (*types.SubscriptionResponse, error)
	Unsubscribe(ctx context.Context, userID, authorID uint) error
	List(ctx context.Context, userID uint, page Page, recipesLimit *int) ([]types.SubscriptionResponse, int64, error)
}

var (
	_ IAuthService         = (*AuthService)(nil)
	_ IUserService         = (*UserService)(nil)
	_ ITagService          = (*TagService)(nil)
	_ IIngredientService   = (*IngredientService)(nil)
	_ IRecipeService       = (*RecipeService)(nil)
	_ IRelationService     = (*RelationService[models.Favorite])(nil)
	_ IRelationService     = (*RelationService[models.ShoppingCart])(nil)
	_ IShoppingListService = (*ShoppingListService)(nil)
	_ ISubscriptionService = (*SubscriptionService)(nil)
)
