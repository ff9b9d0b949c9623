package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/metrics"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	msgSelfSubscribe    = "You cannot subscribe to yourself."
	msgAlreadySubscribe = "You are already subscribed to this user."
	msgNotSubscribed    = "You are not subscribed to this user."
)

type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// ParseRecipesLimit reads the recipes_limit query parameter. An empty value
// means no limit.
func ParseRecipesLimit(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.ValidationFailed("recipes_limit", "A valid integer is required.")
	}
	if n < 0 {
		return nil, apperror.ValidationFailed("recipes_limit", "Ensure this value is greater than or equal to 0.")
	}
	return &n, nil
}

func (s *SubscriptionService) Subscribe(ctx context.Context, userID, authorID uint, recipesLimit *int) (*types.SubscriptionResponse, error) {
	if userID == 0 {
		return nil, apperror.Unauthorized(msgAuthRequired)
	}
	author, err := findUser(ctx, s.db, authorID)
	if err != nil {
		return nil, err
	}
	if author.ID == userID {
		return nil, apperror.Conflict(msgSelfSubscribe)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Subscription{}).Where("user_id = ? AND author_id = ?", userID, authorID).Count(&count).Error; err != nil {
			return fmt.Errorf("check subscription: %w", err)
		}
		if count > 0 {
			return apperror.Conflict(msgAlreadySubscribe)
		}
		sub := models.Subscription{UserID: userID, AuthorID: authorID}
		if err := tx.Omit("User", "Author").Create(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict(msgAlreadySubscribe)
			}
			return fmt.Errorf("insert subscription: %w", err)
		}
		return nil
	})
	metrics.RelationChangesTotal.WithLabelValues("subscription", "add", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	out, err := s.present(ctx, []models.User{*author}, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, authorID uint) error {
	if userID == 0 {
		return apperror.Unauthorized(msgAuthRequired)
	}
	if _, err := findUser(ctx, s.db, authorID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Where("user_id = ? AND author_id = ?", userID, authorID).Delete(&models.Subscription{})
	err := res.Error
	if err != nil {
		err = fmt.Errorf("delete subscription: %w", err)
	} else if res.RowsAffected == 0 {
		err = apperror.Conflict(msgNotSubscribed)
	}
	metrics.RelationChangesTotal.WithLabelValues("subscription", "remove", metrics.Result(err)).Inc()
	return err
}

// List returns the authors userID follows, each with their newest recipes.
func (s *SubscriptionService) List(ctx context.Context, userID uint, page Page, recipesLimit *int) ([]types.SubscriptionResponse, int64, error) {
	if userID == 0 {
		return nil, 0, apperror.Unauthorized(msgAuthRequired)
	}
	followed := s.db.Model(&models.Subscription{}).Select("author_id").Where("user_id = ?", userID)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN (?)", followed).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	var authors []models.User
	err := s.db.WithContext(ctx).
		Where("id IN (?)", followed).
		Order("users.id").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&authors).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}

	out, err := s.present(ctx, authors, recipesLimit)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// present renders followed authors. The viewer follows each of them by
// construction, so is_subscribed is always true.
func (s *SubscriptionService) present(ctx context.Context, authors []models.User, recipesLimit *int) ([]types.SubscriptionResponse, error) {
	out := make([]types.SubscriptionResponse, len(authors))
	if len(authors) == 0 {
		return out, nil
	}

	ids := make([]uint, len(authors))
	for i, a := range authors {
		ids[i] = a.ID
	}

	var counts []struct {
		AuthorID uint
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(&models.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", ids).
		Group("author_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count author recipes: %w", err)
	}
	byAuthor := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byAuthor[c.AuthorID] = c.Total
	}

	for i, a := range authors {
		recipes := []types.RecipeShortResponse{}
		if recipesLimit == nil || *recipesLimit > 0 {
			q := s.db.WithContext(ctx).Where("author_id = ?", a.ID).Order("id DESC")
			if recipesLimit != nil {
				q = q.Limit(*recipesLimit)
			}
			var rows []models.Recipe
			if err := q.Find(&rows).Error; err != nil {
				return nil, fmt.Errorf("load recipes of author %d: %w", a.ID, err)
			}
			for _, r := range rows {
				recipes = append(recipes, presentShort(r))
			}
		}
		out[i] = types.SubscriptionResponse{
			UserResponse: presentUser(a, true),
			Recipes:      recipes,
			RecipesCount: byAuthor[a.ID],
		}
	}
	return out, nil
}
