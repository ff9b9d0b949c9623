package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/metrics"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

const recipeImageFolder = "recipes"

// RecipeService handles recipe operations
type RecipeService struct {
	db        *gorm.DB
	images    *ImageService
	favorites IRelationService
	carts     IRelationService
}

// NewRecipeService creates a new RecipeService instance. favorites and carts
// supply the per-viewer flags of the read representation.
func NewRecipeService(db *gorm.DB, images *ImageService, favorites, carts IRelationService) *RecipeService {
	return &RecipeService{
		db:        db,
		images:    images,
		favorites: favorites,
		carts:     carts,
	}
}

// Create validates body and stores the recipe with its tags and ingredients
// in one transaction.
func (s *RecipeService) Create(ctx context.Context, authorID uint, body []byte) (*types.RecipeResponse, error) {
	if authorID == 0 {
		return nil, apperror.Unauthorized(msgAuthRequired)
	}

	w, err := DecodeRecipeWrite(body, false)
	if err != nil {
		return nil, err
	}
	tags, err := resolveReferences(ctx, s.db, w)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        w.Name,
		Text:        w.Text,
		CookingTime: w.CookingTime,
	}
	if w.Image != nil {
		stored, err := s.images.Resolve(ctx, recipeImageFolder, "image", *w.Image, nil)
		if err != nil {
			return nil, err
		}
		recipe.Image = &stored
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}
		return replaceRelations(tx, &recipe, tags, w.Ingredients)
	})
	if err != nil {
		s.images.Discard(ctx, recipe.Image)
		return nil, err
	}

	metrics.RecipeWritesTotal.WithLabelValues("create").Inc()
	logging.Ctx(ctx).Info().Uint("recipe_id", recipe.ID).Uint("author_id", authorID).Msg("recipe created")
	return s.Get(ctx, recipe.ID, authorID)
}

// Update applies a partial update. Only the author may change a recipe, and
// tags and ingredients are always replaced.
func (s *RecipeService) Update(ctx context.Context, userID, recipeID uint, body []byte) (*types.RecipeResponse, error) {
	if userID == 0 {
		return nil, apperror.Unauthorized(msgAuthRequired)
	}
	recipe, err := findRecipe(ctx, s.db, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.AuthorID != userID {
		return nil, apperror.Forbidden(msgNoPermission)
	}

	w, err := DecodeRecipeWrite(body, true)
	if err != nil {
		return nil, err
	}
	tags, err := resolveReferences(ctx, s.db, w)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if w.HasName {
		updates["name"] = w.Name
	}
	if w.HasText {
		updates["text"] = w.Text
	}
	if w.HasCookingTime {
		updates["cooking_time"] = w.CookingTime
	}

	oldImage := recipe.Image
	var newImage *string
	if w.HasImage {
		if w.Image != nil {
			stored, err := s.images.Resolve(ctx, recipeImageFolder, "image", *w.Image, oldImage)
			if err != nil {
				return nil, err
			}
			newImage = &stored
		}
		updates["image"] = newImage
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(recipe).Omit(clause.Associations).Updates(updates).Error; err != nil {
				return fmt.Errorf("update recipe: %w", err)
			}
		}
		return replaceRelations(tx, recipe, tags, w.Ingredients)
	})
	if err != nil {
		if newImage != nil && (oldImage == nil || *newImage != *oldImage) {
			s.images.Discard(ctx, newImage)
		}
		return nil, err
	}

	if w.HasImage && oldImage != nil && (newImage == nil || *newImage != *oldImage) {
		s.images.Discard(ctx, oldImage)
	}

	metrics.RecipeWritesTotal.WithLabelValues("update").Inc()
	return s.Get(ctx, recipeID, userID)
}

// replaceRelations swaps the recipe's tag set and rewrites its ingredient rows.
func replaceRelations(tx *gorm.DB, recipe *models.Recipe, tags []models.Tag, items []types.RecipeIngredientInput) error {
	if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
		return fmt.Errorf("replace tags: %w", err)
	}
	if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return fmt.Errorf("clear ingredients: %w", err)
	}
	rows := make([]models.RecipeIngredient, len(items))
	for i, it := range items {
		rows[i] = models.RecipeIngredient{
			RecipeID:     recipe.ID,
			IngredientID: it.ID,
			Amount:       it.Amount,
		}
	}
	if err := tx.Omit(clause.Associations).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("insert ingredients: %w", err)
	}
	return nil
}

func (s *RecipeService) Delete(ctx context.Context, userID, recipeID uint) error {
	if userID == 0 {
		return apperror.Unauthorized(msgAuthRequired)
	}
	recipe, err := findRecipe(ctx, s.db, recipeID)
	if err != nil {
		return err
	}
	if recipe.AuthorID != userID {
		return apperror.Forbidden(msgNoPermission)
	}

	if err := s.db.WithContext(ctx).Delete(&models.Recipe{}, recipe.ID).Error; err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	s.images.Discard(ctx, recipe.Image)

	metrics.RecipeWritesTotal.WithLabelValues("delete").Inc()
	return nil
}

func (s *RecipeService) Exists(ctx context.Context, id uint) error {
	_, err := findRecipe(ctx, s.db, id)
	return err
}

func (s *RecipeService) Get(ctx context.Context, id, viewerID uint) (*types.RecipeResponse, error) {
	var recipe models.Recipe
	err := s.preload(s.db.WithContext(ctx)).First(&recipe, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(msgRecipeMissing)
		}
		return nil, fmt.Errorf("load recipe %d: %w", id, err)
	}
	out, err := s.present(ctx, viewerID, []models.Recipe{recipe})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// List returns one page of recipes, newest first, and the total count.
func (s *RecipeService) List(ctx context.Context, filter types.RecipeFilter, page Page, viewerID uint) ([]types.RecipeResponse, int64, error) {
	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Recipe{})
		if filter.AuthorID != 0 {
			q = q.Where("recipes.author_id = ?", filter.AuthorID)
		}
		if len(filter.TagSlugs) > 0 {
			sub := s.db.Table("recipe_tags").
				Select("recipe_tags.recipe_id").
				Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
				Where("tags.slug IN ?", filter.TagSlugs)
			q = q.Where("recipes.id IN (?)", sub)
		}
		if viewerID != 0 && filter.IsFavorited {
			q = q.Where("recipes.id IN (?)",
				s.db.Model(&models.Favorite{}).Select("recipe_id").Where("user_id = ?", viewerID))
		}
		if viewerID != 0 && filter.IsInShoppingCart {
			q = q.Where("recipes.id IN (?)",
				s.db.Model(&models.ShoppingCart{}).Select("recipe_id").Where("user_id = ?", viewerID))
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	var recipes []models.Recipe
	err := s.preload(base()).
		Order("recipes.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}

	out, err := s.present(ctx, viewerID, recipes)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *RecipeService) preload(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("recipe_ingredients.id") }).
		Preload("Ingredients.Ingredient")
}

// present builds the read representation for a batch, resolving the viewer
// flags with one query per relation.
func (s *RecipeService) present(ctx context.Context, viewerID uint, recipes []models.Recipe) ([]types.RecipeResponse, error) {
	out := make([]types.RecipeResponse, len(recipes))
	if len(recipes) == 0 {
		return out, nil
	}

	ids := make([]uint, len(recipes))
	authors := make([]uint, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
		authors[i] = r.AuthorID
	}

	favorited := map[uint]bool{}
	inCart := map[uint]bool{}
	if viewerID != 0 {
		var err error
		if favorited, err = s.favorites.Contains(ctx, viewerID, ids); err != nil {
			return nil, err
		}
		if inCart, err = s.carts.Contains(ctx, viewerID, ids); err != nil {
			return nil, err
		}
	}
	subscribed, err := subscribedTo(ctx, s.db, viewerID, authors)
	if err != nil {
		return nil, err
	}

	for i, r := range recipes {
		tags := make([]types.TagResponse, len(r.Tags))
		for j, t := range r.Tags {
			tags[j] = types.TagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug}
		}
		ingredients := make([]types.RecipeIngredientResponse, len(r.Ingredients))
		for j, ri := range r.Ingredients {
			ingredients[j] = types.RecipeIngredientResponse{
				ID:              ri.IngredientID,
				Name:            ri.Ingredient.Name,
				MeasurementUnit: ri.Ingredient.MeasurementUnit,
				Amount:          ri.Amount,
			}
		}
		out[i] = types.RecipeResponse{
			ID:               r.ID,
			Tags:             tags,
			Author:           presentUser(r.Author, subscribed[r.AuthorID]),
			Ingredients:      ingredients,
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		}
	}
	return out, nil
}
