package recipe_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RecipeTestSuite provides a test suite for the Recipe aggregate
type RecipeTestSuite struct {
	suite.Suite
	now time.Time
}

func (suite *RecipeTestSuite) SetupTest() {
	suite.now = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
}

func ingredients(nonStaples, staples int) []recipe.Ingredient {
	var list []recipe.Ingredient
	for i := 0; i < nonStaples; i++ {
		list = append(list, recipe.Ingredient{Name: fmt.Sprintf("ingredient %d", i+1), IsSacred: i == 0})
	}
	for i := 0; i < staples; i++ {
		list = append(list, recipe.Ingredient{Name: fmt.Sprintf("staple %d", i+1), IsPantryStaple: true})
	}
	return list
}

func (suite *RecipeTestSuite) TestNewRecipe() {
	suite.Run("ValidDetails_ShouldNormalize", func() {
		// Arrange
		uploadID := uuid.New()
		details := recipe.Details{
			Title:            "  Thai Green Curry ",
			Cuisine:          "Thai",
			Vessel:           "wok",
			TotalTimeMinutes: 35,
			Difficulty:       9,
			SpiceLevel:       -2,
			DietaryTags:      []string{"gluten-free", "Gluten-Free", " "},
		}

		// Act
		r, err := recipe.NewRecipe(uploadID, details, ingredients(5, 2), suite.now)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "Thai Green Curry", r.Title())
		assert.True(suite.T(), strings.HasPrefix(r.Slug(), "thai-green-curry-"))
		assert.Equal(suite.T(), 35, r.TotalTimeMinutes())
		assert.Equal(suite.T(), 5, r.Difficulty())
		assert.Equal(suite.T(), 0, r.SpiceLevel())
		assert.Equal(suite.T(), 2, r.AdventureLevel())
		assert.Equal(suite.T(), recipe.DefaultServes, r.Serves())
		assert.Equal(suite.T(), []string{"gluten-free"}, r.DietaryTags())
		assert.Equal(suite.T(), recipe.PipelineStatusExtracted, r.PipelineStatus())
		assert.Equal(suite.T(), uploadID, r.UploadID())

		for i, ing := range r.Ingredients() {
			assert.Equal(suite.T(), r.ID(), ing.RecipeID)
			assert.Equal(suite.T(), i, ing.SortOrder)
			assert.NotEqual(suite.T(), uuid.Nil, ing.ID)
		}

		events := r.PullEvents()
		require.Len(suite.T(), events, 1)
		assert.Equal(suite.T(), "recipe.extracted", events[0].EventName())
		assert.Empty(suite.T(), r.PullEvents())
	})

	suite.Run("MissingTitle_ShouldUseDatedFallback", func() {
		// Act
		r, err := recipe.NewRecipe(uuid.New(), recipe.Details{}, ingredients(1, 0), suite.now)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "Untitled Recipe 2026-03-14", r.Title())
		assert.True(suite.T(), strings.HasPrefix(r.Slug(), "untitled-recipe-2026-03-14-"))
		assert.Equal(suite.T(), recipe.DefaultCuisine, r.Cuisine())
	})

	suite.Run("LongTotalTime_ShouldClampToSixty", func() {
		// Act
		r, err := recipe.NewRecipe(uuid.New(), recipe.Details{Title: "Braise", TotalTimeMinutes: 180}, ingredients(3, 0), suite.now)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), recipe.MaxTotalMinutes, r.TotalTimeMinutes())
	})

	suite.Run("OverflowingPartTimes_ShouldStayWithinBudget", func() {
		// Act
		r, err := recipe.NewRecipe(uuid.New(), recipe.Details{
			Title:           "Stock",
			PrepTimeMinutes: 9_000_000_000_000_000,
			CookTimeMinutes: 9_000_000_000_000_000,
		}, ingredients(3, 0), suite.now)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), recipe.MaxTotalMinutes, r.TotalTimeMinutes())
		assert.Equal(suite.T(), recipe.MaxTotalMinutes, r.PrepTimeMinutes())
		assert.Equal(suite.T(), recipe.MaxTotalMinutes, r.CookTimeMinutes())
	})

	suite.Run("NoIngredients_ShouldReturnError", func() {
		// Act
		r, err := recipe.NewRecipe(uuid.New(), recipe.Details{Title: "Air"}, nil, suite.now)

		// Assert
		assert.Nil(suite.T(), r)
		assert.ErrorIs(suite.T(), err, recipe.ErrNoIngredients)
	})

	suite.Run("ThirteenNonStaples_ShouldReturnError", func() {
		// Act
		r, err := recipe.NewRecipe(uuid.New(), recipe.Details{Title: "Feast"}, ingredients(13, 0), suite.now)

		// Assert
		assert.Nil(suite.T(), r)
		assert.ErrorIs(suite.T(), err, recipe.ErrTooManyNonStaples)
	})

	suite.Run("BlankIngredientName_ShouldReturnError", func() {
		// Act
		_, err := recipe.NewRecipe(uuid.New(), recipe.Details{Title: "Soup"}, []recipe.Ingredient{{Name: " "}}, suite.now)

		// Assert
		assert.ErrorIs(suite.T(), err, recipe.ErrIngredientNameRequired)
	})
}

func (suite *RecipeTestSuite) TestSlugs() {
	suite.Run("SameTitle_ShouldProduceDistinctSlugs", func() {
		seen := make(map[string]bool)
		for i := 0; i < 200; i++ {
			r, err := recipe.NewRecipe(uuid.New(), recipe.Details{Title: "Beef Rendang"}, ingredients(2, 0), suite.now.Add(time.Duration(i%3)))
			require.NoError(suite.T(), err)
			assert.False(suite.T(), seen[r.Slug()], "duplicate slug %s", r.Slug())
			seen[r.Slug()] = true
		}
	})

	suite.Run("RegenerateSlug_ShouldChangeSlug", func() {
		// Arrange
		r, err := recipe.NewRecipe(uuid.New(), recipe.Details{Title: "Laksa"}, ingredients(2, 0), suite.now)
		require.NoError(suite.T(), err)
		original := r.Slug()

		// Act
		r.RegenerateSlug(suite.now.Add(time.Millisecond))

		// Assert
		assert.NotEqual(suite.T(), original, r.Slug())
		assert.True(suite.T(), strings.HasPrefix(r.Slug(), "laksa-"))
	})

	suite.Run("SlugBase_ShouldStripPunctuation", func() {
		assert.Equal(suite.T(), "mapo-tofu", recipe.SlugBase("Mapo  Tofu!"))
		assert.Equal(suite.T(), "creme-brulee", recipe.SlugBase("Crème -- Brûlée"))
		assert.Equal(suite.T(), "recipe", recipe.SlugBase("!!!"))
	})
}

func (suite *RecipeTestSuite) TestCardsReady() {
	// Arrange
	r, err := recipe.NewRecipe(uuid.New(), recipe.Details{Title: "Pho"}, ingredients(4, 1), suite.now)
	require.NoError(suite.T(), err)
	r.PullEvents()

	// Act
	r.MarkCardsReady(5, suite.now.Add(time.Hour))

	// Assert
	assert.Equal(suite.T(), recipe.PipelineStatusCardsReady, r.PipelineStatus())
	events := r.PullEvents()
	require.Len(suite.T(), events, 1)
	ready, ok := events[0].(recipe.RecipeCardsReadyEvent)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), 5, ready.CardCount)
}

func (suite *RecipeTestSuite) TestRestore() {
	suite.Run("MissingSlug_ShouldFail", func() {
		_, err := recipe.Restore(recipe.State{PipelineStatus: recipe.PipelineStatusExtracted})
		assert.ErrorIs(suite.T(), err, recipe.ErrSlugRequired)
	})

	suite.Run("UnknownStatus_ShouldFail", func() {
		_, err := recipe.Restore(recipe.State{Slug: "x", PipelineStatus: "cooking"})
		assert.ErrorIs(suite.T(), err, recipe.ErrInvalidPipelineStep)
	})

	suite.Run("StoredTotalTime_ShouldStayCapped", func() {
		r, err := recipe.Restore(recipe.State{Slug: "x", PipelineStatus: recipe.PipelineStatusCardsReady, TotalTimeMinutes: 95})
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), recipe.MaxTotalMinutes, r.TotalTimeMinutes())
	})
}

func TestRecipeTestSuite(t *testing.T) {
	suite.Run(t, new(RecipeTestSuite))
}
