package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	msgAuthRequired  = "Authentication credentials were not provided."
	msgNoPermission  = "You do not have permission to perform this action."
	msgRecipeMissing = "Recipe not found."
	msgUserMissing   = "User not found."
)

func presentUser(u models.User, subscribed bool) types.UserResponse {
	return types.UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
		Avatar:       u.Avatar,
	}
}

func presentShort(r models.Recipe) types.RecipeShortResponse {
	return types.RecipeShortResponse{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}
}

// subscribedTo returns which of authorIDs the viewer follows. Anonymous
// viewers follow nobody.
func subscribedTo(ctx context.Context, db *gorm.DB, viewerID uint, authorIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(authorIDs))
	if viewerID == 0 || len(authorIDs) == 0 {
		return out, nil
	}
	var ids []uint
	err := db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND author_id IN ?", viewerID, authorIDs).
		Pluck("author_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func findRecipe(ctx context.Context, db *gorm.DB, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := db.WithContext(ctx).First(&recipe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(msgRecipeMissing)
		}
		return nil, fmt.Errorf("load recipe %d: %w", id, err)
	}
	return &recipe, nil
}

func findUser(ctx context.Context, db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(msgUserMissing)
		}
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}
