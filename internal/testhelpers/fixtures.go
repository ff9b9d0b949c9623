package testhelpers

import (
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
)

// DefaultPassword is the plain-text password of every CreateUser fixture.
const DefaultPassword = "s3cret-pass"

var seq atomic.Int64

func next() int64 { return seq.Add(1) }

// CreateUser inserts a user with a unique email and username.
func CreateUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	n := next()
	u := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		Username:     fmt.Sprintf("user%d", n),
		FirstName:    "Test",
		LastName:     fmt.Sprintf("User%d", n),
		PasswordHash: string(hash),
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func CreateTag(t *testing.T, db *gorm.DB, slug string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: slug, Slug: slug}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
	return tag
}

func CreateIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ing := &models.Ingredient{Name: name, MeasurementUnit: unit}
	if err := db.Create(ing).Error; err != nil {
		t.Fatalf("failed to create ingredient: %v", err)
	}
	return ing
}

// Amount pairs an ingredient with a quantity for CreateRecipe.
type Amount struct {
	Ingredient *models.Ingredient
	Amount     int
}

// CreateRecipe inserts a recipe owned by author with the given tags and
// ingredient amounts.
func CreateRecipe(t *testing.T, db *gorm.DB, author *models.User, tags []*models.Tag, amounts ...Amount) *models.Recipe {
	t.Helper()
	r := &models.Recipe{
		AuthorID:    author.ID,
		Name:        fmt.Sprintf("Recipe %d", next()),
		Text:        "Mix and bake.",
		CookingTime: 30,
	}
	if err := db.Omit("Author", "Tags", "Ingredients").Create(r).Error; err != nil {
		t.Fatalf("failed to create recipe: %v", err)
	}
	if len(tags) > 0 {
		if err := db.Model(r).Association("Tags").Append(tags); err != nil {
			t.Fatalf("failed to tag recipe: %v", err)
		}
	}
	for _, a := range amounts {
		row := &models.RecipeIngredient{RecipeID: r.ID, IngredientID: a.Ingredient.ID, Amount: a.Amount}
		if err := db.Omit("Ingredient").Create(row).Error; err != nil {
			t.Fatalf("failed to add ingredient: %v", err)
		}
	}
	return r
}
