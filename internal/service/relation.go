package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/metrics"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// RelationMessages are the conflict texts of one relation kind.
type RelationMessages struct {
	AlreadyExists string
	Missing       string
}

// RelationService toggles a (user, recipe) pair stored as T.
type RelationService[T models.Favorite | models.ShoppingCart] struct {
	db     *gorm.DB
	name   string
	msgs   RelationMessages
	newRow func(userID, recipeID uint) *T
}

func NewFavoriteService(db *gorm.DB) *RelationService[models.Favorite] {
	return &RelationService[models.Favorite]{
		db:   db,
		name: "favorite",
		msgs: RelationMessages{
			AlreadyExists: "Recipe is already in favorites.",
			Missing:       "Recipe is not in favorites.",
		},
		newRow: func(userID, recipeID uint) *models.Favorite {
			return &models.Favorite{UserID: userID, RecipeID: recipeID}
		},
	}
}

func NewShoppingCartService(db *gorm.DB) *RelationService[models.ShoppingCart] {
	return &RelationService[models.ShoppingCart]{
		db:   db,
		name: "shopping_cart",
		msgs: RelationMessages{
			AlreadyExists: "Recipe is already in the shopping cart.",
			Missing:       "Recipe is not in the shopping cart.",
		},
		newRow: func(userID, recipeID uint) *models.ShoppingCart {
			return &models.ShoppingCart{UserID: userID, RecipeID: recipeID}
		},
	}
}

// Add links the recipe to the user. The pre-check and the unique index both
// report an existing pair as the same conflict.
func (s *RelationService[T]) Add(ctx context.Context, userID, recipeID uint) (*types.RecipeShortResponse, error) {
	if userID == 0 {
		return nil, apperror.Unauthorized(msgAuthRequired)
	}
	recipe, err := findRecipe(ctx, s.db, recipeID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(new(T)).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Count(&count).Error; err != nil {
			return fmt.Errorf("check %s: %w", s.name, err)
		}
		if count > 0 {
			return apperror.Conflict(s.msgs.AlreadyExists)
		}
		if err := tx.Omit("User", "Recipe").Create(s.newRow(userID, recipeID)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict(s.msgs.AlreadyExists)
			}
			return fmt.Errorf("insert %s: %w", s.name, err)
		}
		return nil
	})
	metrics.RelationChangesTotal.WithLabelValues(s.name, "add", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	short := presentShort(*recipe)
	return &short, nil
}

func (s *RelationService[T]) Remove(ctx context.Context, userID, recipeID uint) error {
	if userID == 0 {
		return apperror.Unauthorized(msgAuthRequired)
	}
	if _, err := findRecipe(ctx, s.db, recipeID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(new(T))
	err := res.Error
	if err != nil {
		err = fmt.Errorf("delete %s: %w", s.name, err)
	} else if res.RowsAffected == 0 {
		err = apperror.Conflict(s.msgs.Missing)
	}
	metrics.RelationChangesTotal.WithLabelValues(s.name, "remove", metrics.Result(err)).Inc()
	return err
}

// Contains reports which of recipeIDs the user has linked.
func (s *RelationService[T]) Contains(ctx context.Context, userID uint, recipeIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(recipeIDs))
	if userID == 0 || len(recipeIDs) == 0 {
		return out, nil
	}
	var ids []uint
	err := s.db.WithContext(ctx).Model(new(T)).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Pluck("recipe_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.name, err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
