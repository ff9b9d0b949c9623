package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

//go:embed data/*.json
var defaults embed.FS

const batchSize = 500

// loadIngredients inserts every ingredient from r that is not present yet and
// returns how many rows were added.
func loadIngredients(ctx context.Context, db *gorm.DB, r io.Reader) (int64, error) {
	var items []models.Ingredient
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return 0, fmt.Errorf("decode ingredients: %w", err)
	}
	for i := range items {
		items[i].ID = 0
		items[i].Name = strings.TrimSpace(items[i].Name)
		items[i].MeasurementUnit = strings.TrimSpace(items[i].MeasurementUnit)
		if items[i].Name == "" || items[i].MeasurementUnit == "" {
			return 0, fmt.Errorf("ingredient %d: name and measurement_unit are required", i)
		}
	}
	return insertMissing(ctx, db, items, "name")
}

func loadTags(ctx context.Context, db *gorm.DB, r io.Reader) (int64, error) {
	var tags []models.Tag
	if err := json.NewDecoder(r).Decode(&tags); err != nil {
		return 0, fmt.Errorf("decode tags: %w", err)
	}
	for i := range tags {
		tags[i].ID = 0
		if tags[i].Slug == "" {
			return 0, fmt.Errorf("tag %d: slug is required", i)
		}
	}
	return insertMissing(ctx, db, tags, "slug")
}

func insertMissing[T any](ctx context.Context, db *gorm.DB, rows []T, column string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: column}}, DoNothing: true}).
		CreateInBatches(rows, batchSize)
	return res.RowsAffected, res.Error
}

var demoUsers = []types.RegisterRequest{
	{Email: "anna@example.com", Username: "anna", FirstName: "Anna", LastName: "Baker"},
	{Email: "boris@example.com", Username: "boris", FirstName: "Boris", LastName: "Cook"},
	{Email: "chloe@example.com", Username: "chloe", FirstName: "Chloe", LastName: "Grill"},
}

// seedUsers registers the demo accounts, skipping the ones that exist.
func seedUsers(ctx context.Context, users *service.UserService, password string) (int, error) {
	created := 0
	for _, req := range demoUsers {
		req.Password = password
		if _, err := users.Register(ctx, req); err != nil {
			if errors.Is(err, apperror.ErrValidation) {
				continue
			}
			return created, fmt.Errorf("register %s: %w", req.Username, err)
		}
		created++
	}
	return created, nil
}
