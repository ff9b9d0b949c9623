package types

// RegisterRequest represents the request body for creating a user
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"required,max=150,username"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

type AvatarRequest struct {
	Avatar string `json:"avatar" validate:"required"`
}

// RecipeIngredientInput is one element of a recipe write's ingredient list.
type RecipeIngredientInput struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

// RecipeWrite is a decoded recipe create or partial update. The Has* flags
// record which keys were present in the raw payload, so a missing key can be
// told apart from an explicit empty value.
type RecipeWrite struct {
	Name        string
	Text        string
	Image       *string
	CookingTime int
	Tags        []uint
	Ingredients []RecipeIngredientInput

	HasName        bool
	HasText        bool
	HasImage       bool
	HasCookingTime bool
	HasTags        bool
	HasIngredients bool
}

// RecipeFilter holds the query filters of the recipe list.
type RecipeFilter struct {
	AuthorID         uint
	TagSlugs         []string
	IsFavorited      bool
	IsInShoppingCart bool
}
