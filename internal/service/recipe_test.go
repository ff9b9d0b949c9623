package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func body(t *testing.T, v map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func recipePayload(tagIDs []uint, ingredients ...map[string]any) map[string]any {
	return map[string]any{
		"name":         "Pancakes",
		"text":         "Whisk and fry.",
		"image":        nil,
		"cooking_time": 20,
		"tags":         tagIDs,
		"ingredients":  ingredients,
	}
}

func ing(id uint, amount int) map[string]any {
	return map[string]any{"id": id, "amount": amount}
}

func TestDecodeRecipeWrite(t *testing.T) {
	full := func(mutate func(map[string]any)) []byte {
		p := recipePayload([]uint{1, 2}, ing(1, 100), ing(2, 3))
		mutate(p)
		b, _ := json.Marshal(p)
		return b
	}

	tests := []struct {
		name    string
		body    []byte
		partial bool
		field   string
		message string
	}{
		{"missing ingredients key", full(func(p map[string]any) { delete(p, "ingredients") }), false, "ingredients", "This field is required."},
		{"empty ingredients", full(func(p map[string]any) { p["ingredients"] = []any{} }), false, "ingredients", "The list of ingredients cannot be empty."},
		{"repeated ingredient", full(func(p map[string]any) { p["ingredients"] = []any{ing(1, 1), ing(1, 2)} }), false, "ingredients", "Ingredients should not be repeated."},
		{"missing tags key", full(func(p map[string]any) { delete(p, "tags") }), false, "tags", "This field is required."},
		{"empty tags", full(func(p map[string]any) { p["tags"] = []uint{} }), false, "tags", "The list of tags cannot be empty."},
		{"repeated tag", full(func(p map[string]any) { p["tags"] = []uint{2, 2} }), false, "tags", "Tags should not be repeated."},
		{"missing tags on partial update", []byte(`{"name":"x","ingredients":[{"id":1,"amount":1}]}`), true, "tags", "This field is required."},
		{"missing ingredients on partial update", []byte(`{"tags":[1]}`), true, "ingredients", "This field is required."},
		{"zero cooking time", full(func(p map[string]any) { p["cooking_time"] = 0 }), false, "cooking_time", "Ensure this value is greater than or equal to 1."},
		{"blank name", full(func(p map[string]any) { p["name"] = "  " }), false, "name", "This field may not be blank."},
		{"missing name on create", full(func(p map[string]any) { delete(p, "name") }), false, "name", "This field is required."},
		{"not an object", []byte(`[1,2]`), false, "non_field_errors", "Invalid data. Expected a dictionary."},
		{"trailing bytes", []byte(`{"tags":[1],"ingredients":[{"id":1,"amount":1}]} trailing`), true, "non_field_errors", "Invalid data. Expected a dictionary."},
		{"second object", []byte(`{"tags":[1],"ingredients":[{"id":1,"amount":1}]}{}`), true, "non_field_errors", "Invalid data. Expected a dictionary."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.DecodeRecipeWrite(tt.body, tt.partial)
			appErr := requireKind(t, err, apperror.ErrValidation)
			require.Contains(t, appErr.Fields, tt.field)
			assert.Contains(t, appErr.Fields[tt.field], tt.message)
		})
	}

	t.Run("amount below one", func(t *testing.T) {
		_, err := service.DecodeRecipeWrite(full(func(p map[string]any) { p["ingredients"] = []any{ing(1, 0)} }), false)
		appErr := requireKind(t, err, apperror.ErrValidation)
		assert.Equal(t, []string{"amount: Ensure this value is greater than or equal to 1."}, appErr.Fields["ingredients"])
	})

	t.Run("ingredient without id", func(t *testing.T) {
		_, err := service.DecodeRecipeWrite(full(func(p map[string]any) {
			p["ingredients"] = []any{map[string]any{"amount": 5}}
		}), false)
		appErr := requireKind(t, err, apperror.ErrValidation)
		assert.Equal(t, []string{"id: This field is required."}, appErr.Fields["ingredients"])
	})

	t.Run("valid partial update", func(t *testing.T) {
		w, err := service.DecodeRecipeWrite([]byte(`{"tags":[1],"ingredients":[{"id":1,"amount":5}],"cooking_time":7}`), true)
		require.NoError(t, err)
		assert.False(t, w.HasName)
		assert.True(t, w.HasCookingTime)
		assert.Equal(t, 7, w.CookingTime)
		assert.Equal(t, []types.RecipeIngredientInput{{ID: 1, Amount: 5}}, w.Ingredients)
	})
}

type recipeFixture struct {
	author    *models.User
	other     *models.User
	breakfast *models.Tag
	dinner    *models.Tag
	flour     *models.Ingredient
	milk      *models.Ingredient
}

func seedCatalog(t *testing.T, e *env) recipeFixture {
	return recipeFixture{
		author:    testhelpers.CreateUser(t, e.db),
		other:     testhelpers.CreateUser(t, e.db),
		breakfast: testhelpers.CreateTag(t, e.db, "breakfast"),
		dinner:    testhelpers.CreateTag(t, e.db, "dinner"),
		flour:     testhelpers.CreateIngredient(t, e.db, "flour", "g"),
		milk:      testhelpers.CreateIngredient(t, e.db, "milk", "ml"),
	}
}

func TestCreateRecipe(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := seedCatalog(t, e)

	payload := recipePayload([]uint{f.dinner.ID, f.breakfast.ID}, ing(f.flour.ID, 200), ing(f.milk.ID, 300))
	payload["image"] = pngDataURI()

	got, err := e.recipes.Create(ctx, f.author.ID, body(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", got.Name)
	assert.Equal(t, f.author.ID, got.Author.ID)
	require.NotNil(t, got.Image)
	assert.Contains(t, *got.Image, "/media/recipes/")
	assert.False(t, got.IsFavorited)

	require.Len(t, got.Tags, 2)
	assert.Equal(t, "breakfast", got.Tags[0].Slug)
	require.Len(t, got.Ingredients, 2)
	assert.Equal(t, types.RecipeIngredientResponse{ID: f.flour.ID, Name: "flour", MeasurementUnit: "g", Amount: 200}, got.Ingredients[0])

	t.Run("anonymous", func(t *testing.T) {
		_, err := e.recipes.Create(ctx, 0, body(t, payload))
		requireKind(t, err, apperror.ErrUnauthorized)
	})

	t.Run("unknown ingredient", func(t *testing.T) {
		bad := recipePayload([]uint{f.dinner.ID}, ing(9999, 1))
		_, err := e.recipes.Create(ctx, f.author.ID, body(t, bad))
		appErr := requireKind(t, err, apperror.ErrValidation)
		assert.Contains(t, appErr.Fields, "ingredients")
	})

	t.Run("unknown tag", func(t *testing.T) {
		bad := recipePayload([]uint{9999}, ing(f.flour.ID, 1))
		_, err := e.recipes.Create(ctx, f.author.ID, body(t, bad))
		appErr := requireKind(t, err, apperror.ErrValidation)
		assert.Contains(t, appErr.Fields, "tags")
	})

	t.Run("invalid payload writes nothing", func(t *testing.T) {
		var before int64
		require.NoError(t, e.db.Model(&models.Recipe{}).Count(&before).Error)
		bad := recipePayload([]uint{f.dinner.ID})
		_, err := e.recipes.Create(ctx, f.author.ID, body(t, bad))
		requireKind(t, err, apperror.ErrValidation)
		var after int64
		require.NoError(t, e.db.Model(&models.Recipe{}).Count(&after).Error)
		assert.Equal(t, before, after)
	})
}

func TestUpdateRecipe(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := seedCatalog(t, e)

	created, err := e.recipes.Create(ctx, f.author.ID,
		body(t, recipePayload([]uint{f.dinner.ID}, ing(f.flour.ID, 200), ing(f.milk.ID, 300))))
	require.NoError(t, err)

	patch := body(t, map[string]any{
		"name":        "Crepes",
		"tags":        []uint{f.breakfast.ID},
		"ingredients": []any{ing(f.milk.ID, 50)},
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		_, err := e.recipes.Update(ctx, f.other.ID, created.ID, patch)
		requireKind(t, err, apperror.ErrForbidden)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := e.recipes.Update(ctx, 0, created.ID, patch)
		requireKind(t, err, apperror.ErrUnauthorized)
	})

	t.Run("missing recipe", func(t *testing.T) {
		_, err := e.recipes.Update(ctx, f.author.ID, 9999, patch)
		requireKind(t, err, apperror.ErrNotFound)
	})

	t.Run("author replaces relations", func(t *testing.T) {
		got, err := e.recipes.Update(ctx, f.author.ID, created.ID, patch)
		require.NoError(t, err)
		assert.Equal(t, "Crepes", got.Name)
		assert.Equal(t, "Whisk and fry.", got.Text)
		assert.Equal(t, 20, got.CookingTime)
		require.Len(t, got.Tags, 1)
		assert.Equal(t, f.breakfast.ID, got.Tags[0].ID)
		require.Len(t, got.Ingredients, 1)
		assert.Equal(t, 50, got.Ingredients[0].Amount)

		var rows int64
		require.NoError(t, e.db.Model(&models.RecipeIngredient{}).Where("recipe_id = ?", created.ID).Count(&rows).Error)
		assert.EqualValues(t, 1, rows)
	})

	t.Run("missing tags key", func(t *testing.T) {
		_, err := e.recipes.Update(ctx, f.author.ID, created.ID, body(t, map[string]any{
			"ingredients": []any{ing(f.milk.ID, 50)},
		}))
		appErr := requireKind(t, err, apperror.ErrValidation)
		assert.Equal(t, []string{"This field is required."}, appErr.Fields["tags"])
	})
}

func TestDeleteRecipe(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := seedCatalog(t, e)
	recipe := testhelpers.CreateRecipe(t, e.db, f.author, []*models.Tag{f.dinner}, testhelpers.Amount{Ingredient: f.flour, Amount: 1})
	_, err := e.favorites.Add(ctx, f.other.ID, recipe.ID)
	require.NoError(t, err)

	requireKind(t, e.recipes.Delete(ctx, f.other.ID, recipe.ID), apperror.ErrForbidden)
	require.NoError(t, e.recipes.Delete(ctx, f.author.ID, recipe.ID))
	requireKind(t, e.recipes.Exists(ctx, recipe.ID), apperror.ErrNotFound)

	var favorites int64
	require.NoError(t, e.db.Model(&models.Favorite{}).Where("recipe_id = ?", recipe.ID).Count(&favorites).Error)
	assert.Zero(t, favorites)
}

func TestStoredImagesStayWithTheirOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := seedCatalog(t, e)

	avatar, err := e.users.SetAvatar(ctx, f.other.ID, types.AvatarRequest{Avatar: pngDataURI()})
	require.NoError(t, err)
	victim := *avatar.Avatar

	payload := recipePayload([]uint{f.dinner.ID}, ing(f.flour.ID, 1))
	payload["image"] = victim
	_, err = e.recipes.Create(ctx, f.author.ID, body(t, payload))
	appErr := requireKind(t, err, apperror.ErrValidation)
	assert.Equal(t, []string{"Upload a valid image. The file you uploaded was either not an image or a corrupted image."}, appErr.Fields["image"])

	payload["image"] = pngDataURI()
	own, err := e.recipes.Create(ctx, f.author.ID, body(t, payload))
	require.NoError(t, err)
	require.NotNil(t, own.Image)

	t.Run("patch cannot adopt a foreign image", func(t *testing.T) {
		patch := map[string]any{"image": victim, "tags": []uint{f.dinner.ID}, "ingredients": []any{ing(f.flour.ID, 1)}}
		_, err := e.recipes.Update(ctx, f.author.ID, own.ID, body(t, patch))
		requireKind(t, err, apperror.ErrValidation)
	})

	t.Run("patch keeps the current image", func(t *testing.T) {
		patch := map[string]any{"image": *own.Image, "tags": []uint{f.dinner.ID}, "ingredients": []any{ing(f.flour.ID, 1)}}
		got, err := e.recipes.Update(ctx, f.author.ID, own.ID, body(t, patch))
		require.NoError(t, err)
		assert.Equal(t, own.Image, got.Image)
		_, err = os.Stat(e.onDisk(*own.Image))
		assert.NoError(t, err)
	})

	t.Run("avatar cannot adopt a recipe image", func(t *testing.T) {
		_, err := e.users.SetAvatar(ctx, f.other.ID, types.AvatarRequest{Avatar: *own.Image})
		appErr := requireKind(t, err, apperror.ErrValidation)
		assert.Contains(t, appErr.Fields, "avatar")
	})

	t.Run("avatar can be resent unchanged", func(t *testing.T) {
		got, err := e.users.SetAvatar(ctx, f.other.ID, types.AvatarRequest{Avatar: victim})
		require.NoError(t, err)
		assert.Equal(t, victim, *got.Avatar)
	})

	require.NoError(t, e.recipes.Delete(ctx, f.author.ID, own.ID))
	_, err = os.Stat(e.onDisk(*own.Image))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(e.onDisk(victim))
	assert.NoError(t, err)
}

func TestListRecipes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := seedCatalog(t, e)

	first := testhelpers.CreateRecipe(t, e.db, f.author, []*models.Tag{f.breakfast})
	second := testhelpers.CreateRecipe(t, e.db, f.author, []*models.Tag{f.dinner})
	third := testhelpers.CreateRecipe(t, e.db, f.other, []*models.Tag{f.breakfast, f.dinner})

	_, err := e.favorites.Add(ctx, f.other.ID, first.ID)
	require.NoError(t, err)
	_, err = e.carts.Add(ctx, f.other.ID, second.ID)
	require.NoError(t, err)

	ids := func(rs []types.RecipeResponse) []uint {
		out := make([]uint, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}
	page := service.Page{Number: 1, Limit: 10}

	tests := []struct {
		name   string
		filter types.RecipeFilter
		viewer uint
		want   []uint
	}{
		{"all newest first", types.RecipeFilter{}, 0, []uint{third.ID, second.ID, first.ID}},
		{"by author", types.RecipeFilter{AuthorID: f.author.ID}, 0, []uint{second.ID, first.ID}},
		{"by tag", types.RecipeFilter{TagSlugs: []string{"breakfast"}}, 0, []uint{third.ID, first.ID}},
		{"any of tags", types.RecipeFilter{TagSlugs: []string{"breakfast", "dinner"}}, 0, []uint{third.ID, second.ID, first.ID}},
		{"favorited", types.RecipeFilter{IsFavorited: true}, f.other.ID, []uint{first.ID}},
		{"in cart", types.RecipeFilter{IsInShoppingCart: true}, f.other.ID, []uint{second.ID}},
		{"flags ignored for anonymous", types.RecipeFilter{IsFavorited: true}, 0, []uint{third.ID, second.ID, first.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := e.recipes.List(ctx, tt.filter, page, tt.viewer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
			assert.EqualValues(t, len(tt.want), total)
		})
	}

	t.Run("viewer flags", func(t *testing.T) {
		got, _, err := e.recipes.List(ctx, types.RecipeFilter{AuthorID: f.author.ID}, page, f.other.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].IsInShoppingCart, fmt.Sprintf("recipe %d", got[0].ID))
		assert.True(t, got[1].IsFavorited)
	})

	t.Run("pagination keeps the total", func(t *testing.T) {
		got, total, err := e.recipes.List(ctx, types.RecipeFilter{}, service.Page{Number: 2, Limit: 2}, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Equal(t, []uint{first.ID}, ids(got))
	})
}
