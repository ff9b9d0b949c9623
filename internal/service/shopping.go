package service

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/metrics"
	"github.com/pageza/foodgram/backend/internal/types"
)

// ShoppingListFilename is the attachment name of the downloaded list.
const ShoppingListFilename = "shopping_cart.txt"

type ShoppingListService struct {
	db *gorm.DB
}

func NewShoppingListService(db *gorm.DB) *ShoppingListService {
	return &ShoppingListService{db: db}
}

// Aggregate sums ingredient amounts over every recipe in the user's cart,
// one row per (name, unit), sorted by name.
func (s *ShoppingListService) Aggregate(ctx context.Context, userID uint) ([]types.ShoppingListItem, error) {
	if userID == 0 {
		return nil, apperror.Unauthorized(msgAuthRequired)
	}
	var items []types.ShoppingListItem
	err := s.db.WithContext(ctx).
		Table("recipe_ingredients AS ri").
		Select("i.name AS name, i.measurement_unit AS measurement_unit, SUM(ri.amount) AS amount").
		Joins("JOIN ingredients AS i ON i.id = ri.ingredient_id").
		Joins("JOIN shopping_carts AS sc ON sc.recipe_id = ri.recipe_id").
		Where("sc.user_id = ?", userID).
		Group("i.name, i.measurement_unit").
		Order("i.name, i.measurement_unit").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate shopping list: %w", err)
	}
	return items, nil
}

// Render formats items as "name: amountunit" lines.
func Render(items []types.ShoppingListItem) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%s: %d%s", it.Name, it.Amount, it.MeasurementUnit)
	}
	return strings.Join(lines, "\n")
}

func (s *ShoppingListService) Download(ctx context.Context, userID uint) (string, error) {
	items, err := s.Aggregate(ctx, userID)
	if err != nil {
		return "", err
	}
	metrics.ShoppingListDownloadsTotal.Inc()
	return Render(items), nil
}
