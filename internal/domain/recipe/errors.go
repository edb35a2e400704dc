package recipe

import "errors"

// Domain errors for recipe operations

var (
	// Entity validation errors
	ErrNoIngredients          = errors.New("recipe must have at least one ingredient")
	ErrIngredientNameRequired = errors.New("ingredient name is required")
	ErrNegativeCost           = errors.New("ingredient estimated cost cannot be negative")
	ErrTooManyNonStaples      = errors.New("recipe exceeds the non-staple ingredient limit")
	ErrSlugRequired           = errors.New("recipe slug is required")

	// State errors
	ErrRecipeNotFound      = errors.New("recipe not found")
	ErrDuplicateSlug       = errors.New("recipe slug already exists")
	ErrInvalidPipelineStep = errors.New("invalid recipe pipeline status")
)
