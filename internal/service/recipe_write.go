package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	maxRecipeName = 256
	minSmallInt   = 1
	maxSmallInt   = 32000

	msgRequired          = "This field is required."
	msgInvalidValue      = "Invalid value."
	msgNotAnObject       = "Invalid data. Expected a dictionary."
	msgIngredientsEmpty  = "The list of ingredients cannot be empty."
	msgIngredientsRepeat = "Ingredients should not be repeated."
	msgTagsEmpty         = "The list of tags cannot be empty."
	msgTagsRepeat        = "Tags should not be repeated."
)

// recipeFields lists the keys a create must carry. Partial updates only need
// tags and ingredients.
var recipeFields = []string{"ingredients", "tags", "image", "name", "text", "cooking_time"}

// DecodeRecipeWrite parses a recipe create (partial=false) or update body and
// runs every check that does not need the database. Key presence is tracked
// so a missing key and an empty value produce different messages.
func DecodeRecipeWrite(body []byte, partial bool) (*types.RecipeWrite, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, apperror.ValidationFailed("non_field_errors", msgNotAnObject)
	}

	fields := map[string][]string{}
	w := &types.RecipeWrite{}

	for _, key := range recipeFields {
		if _, ok := raw[key]; ok {
			continue
		}
		if !partial || key == "tags" || key == "ingredients" {
			fields[key] = []string{msgRequired}
		}
	}

	if v, ok := raw["name"]; ok {
		w.HasName = true
		var name *string
		switch {
		case json.Unmarshal(v, &name) != nil:
			fields["name"] = []string{msgInvalidValue}
		case name == nil || strings.TrimSpace(*name) == "":
			fields["name"] = []string{"This field may not be blank."}
		case len([]rune(strings.TrimSpace(*name))) > maxRecipeName:
			fields["name"] = []string{fmt.Sprintf("Ensure this field has no more than %d characters.", maxRecipeName)}
		default:
			w.Name = strings.TrimSpace(*name)
		}
	}

	if v, ok := raw["text"]; ok {
		w.HasText = true
		var text *string
		switch {
		case json.Unmarshal(v, &text) != nil:
			fields["text"] = []string{msgInvalidValue}
		case text == nil || strings.TrimSpace(*text) == "":
			fields["text"] = []string{"This field may not be blank."}
		default:
			w.Text = *text
		}
	}

	if v, ok := raw["image"]; ok {
		w.HasImage = true
		if err := json.Unmarshal(v, &w.Image); err != nil {
			fields["image"] = []string{msgInvalidValue}
		} else if w.Image != nil && strings.TrimSpace(*w.Image) == "" {
			w.Image = nil
		}
	}

	if v, ok := raw["cooking_time"]; ok {
		w.HasCookingTime = true
		if err := json.Unmarshal(v, &w.CookingTime); err != nil {
			fields["cooking_time"] = []string{"A valid integer is required."}
		} else if msg := smallIntRange(w.CookingTime); msg != "" {
			fields["cooking_time"] = []string{msg}
		}
	}

	if v, ok := raw["tags"]; ok {
		w.HasTags = true
		if err := json.Unmarshal(v, &w.Tags); err != nil {
			fields["tags"] = []string{msgInvalidValue}
		} else if msg := checkTags(w.Tags); msg != "" {
			fields["tags"] = []string{msg}
		}
	}

	if v, ok := raw["ingredients"]; ok {
		w.HasIngredients = true
		if err := json.Unmarshal(v, &w.Ingredients); err != nil {
			fields["ingredients"] = []string{msgInvalidValue}
		} else if msgs := checkIngredients(w.Ingredients); len(msgs) > 0 {
			fields["ingredients"] = msgs
		}
	}

	if err := apperror.Validation(fields); err != nil {
		return nil, err
	}
	return w, nil
}

func smallIntRange(v int) string {
	if v < minSmallInt {
		return fmt.Sprintf("Ensure this value is greater than or equal to %d.", minSmallInt)
	}
	if v > maxSmallInt {
		return fmt.Sprintf("Ensure this value is less than or equal to %d.", maxSmallInt)
	}
	return ""
}

func checkTags(ids []uint) string {
	if len(ids) == 0 {
		return msgTagsEmpty
	}
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return msgTagsRepeat
		}
		seen[id] = struct{}{}
	}
	return ""
}

func checkIngredients(items []types.RecipeIngredientInput) []string {
	if len(items) == 0 {
		return []string{msgIngredientsEmpty}
	}
	var msgs []string
	seen := make(map[uint]struct{}, len(items))
	repeated := false
	for _, it := range items {
		if it.ID == 0 {
			msgs = append(msgs, fmt.Sprintf("id: %s", msgRequired))
		} else if _, dup := seen[it.ID]; dup {
			repeated = true
		}
		seen[it.ID] = struct{}{}
		if msg := smallIntRange(it.Amount); msg != "" {
			msgs = append(msgs, fmt.Sprintf("amount: %s", msg))
		}
	}
	if repeated {
		msgs = append([]string{msgIngredientsRepeat}, msgs...)
	}
	return msgs
}

// resolveReferences loads the tags and ingredients a write points at and
// reports unknown ids against the owning field.
func resolveReferences(ctx context.Context, db *gorm.DB, w *types.RecipeWrite) ([]models.Tag, error) {
	fields := map[string][]string{}

	var tags []models.Tag
	if w.HasTags {
		if err := db.WithContext(ctx).Where("id IN ?", w.Tags).Find(&tags).Error; err != nil {
			return nil, fmt.Errorf("load tags: %w", err)
		}
		if missing := missingIDs(w.Tags, tagIDs(tags)); len(missing) > 0 {
			fields["tags"] = []string{fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", missing[0])}
		}
	}

	if w.HasIngredients {
		want := make([]uint, len(w.Ingredients))
		for i, it := range w.Ingredients {
			want[i] = it.ID
		}
		var found []uint
		if err := db.WithContext(ctx).Model(&models.Ingredient{}).Where("id IN ?", want).Pluck("id", &found).Error; err != nil {
			return nil, fmt.Errorf("load ingredients: %w", err)
		}
		if missing := missingIDs(want, found); len(missing) > 0 {
			fields["ingredients"] = []string{fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", missing[0])}
		}
	}

	if err := apperror.Validation(fields); err != nil {
		return nil, err
	}
	return tags, nil
}

func tagIDs(tags []models.Tag) []uint {
	ids := make([]uint, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

func missingIDs(want, found []uint) []uint {
	have := make(map[uint]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}
	var missing []uint
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
