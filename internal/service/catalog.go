package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// TagService serves the read-only tag catalog.
type TagService struct {
	db *gorm.DB
}

func NewTagService(db *gorm.DB) *TagService {
	return &TagService{db: db}
}

func (s *TagService) List(ctx context.Context) ([]types.TagResponse, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("id").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make([]types.TagResponse, len(tags))
	for i, t := range tags {
		out[i] = types.TagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug}
	}
	return out, nil
}

func (s *TagService) Get(ctx context.Context, id uint) (*types.TagResponse, error) {
	var t models.Tag
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Tag not found.")
		}
		return nil, fmt.Errorf("load tag %d: %w", id, err)
	}
	return &types.TagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug}, nil
}

// IngredientService serves the read-only ingredient catalog.
type IngredientService struct {
	db *gorm.DB
}

func NewIngredientService(db *gorm.DB) *IngredientService {
	return &IngredientService{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns ingredients ordered by name, optionally restricted to names
// starting with namePrefix (case-insensitive).
func (s *IngredientService) List(ctx context.Context, namePrefix string) ([]types.IngredientResponse, error) {
	q := s.db.WithContext(ctx).Order("name")
	if p := strings.TrimSpace(namePrefix); p != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, likeEscaper.Replace(strings.ToLower(p))+"%")
	}
	var rows []models.Ingredient
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	out := make([]types.IngredientResponse, len(rows))
	for i, r := range rows {
		out[i] = types.IngredientResponse{ID: r.ID, Name: r.Name, MeasurementUnit: r.MeasurementUnit}
	}
	return out, nil
}

func (s *IngredientService) Get(ctx context.Context, id uint) (*types.IngredientResponse, error) {
	var r models.Ingredient
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Ingredient not found.")
		}
		return nil, fmt.Errorf("load ingredient %d: %w", id, err)
	}
	return &types.IngredientResponse{ID: r.ID, Name: r.Name, MeasurementUnit: r.MeasurementUnit}, nil
}
