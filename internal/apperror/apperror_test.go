package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoriesSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("create favorite: %w", Conflict("Recipe is already in favorites."))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Recipe is already in favorites.", appErr.Message)
}

func TestValidationNilWhenEmpty(t *testing.T) {
	assert.NoError(t, Validation(nil))
	assert.NoError(t, Validation(map[string][]string{}))
}

func TestValidationErrorString(t *testing.T) {
	err := Validation(map[string][]string{
		"tags":        {"This field is required."},
		"ingredients": {"Ingredients should not be repeated."},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t,
		"Invalid input. (ingredients: Ingredients should not be repeated., tags: This field is required.)",
		err.Error())
}

func TestValidationFailedSingleField(t *testing.T) {
	err := ValidationFailed("recipes_limit", "A valid integer is required.")
	assert.Equal(t, []string{"A valid integer is required."}, err.Fields["recipes_limit"])
	assert.ErrorIs(t, err, ErrValidation)
}
