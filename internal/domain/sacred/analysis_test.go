package sacred_test

import (
	"math"
	"testing"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AnalysisTestSuite struct {
	suite.Suite
	now time.Time
}

func (suite *AnalysisTestSuite) SetupTest() {
	suite.now = time.Now().UTC()
}

func (suite *AnalysisTestSuite) TestNewAnalysis() {
	suite.Run("BlankHero_ShouldDefaultToFirstSacred", func() {
		// Arrange
		draft := sacred.Draft{
			SacredIngredients: []sacred.SacredIngredient{
				{Ingredient: " lemongrass ", Reason: "aromatic backbone"},
				{Ingredient: "Lemongrass", Reason: "duplicate"},
				{Ingredient: "fish sauce", Reason: "salt and umami"},
			},
			FlexibleIngredients: []sacred.FlexibleIngredient{
				{Ingredient: "thai basil", CanRemove: true, Substitute: "basil"},
				{Ingredient: "  "},
			},
			SideTasksNeeded: []string{"Boil jasmine rice", "boil jasmine rice"},
			QualityScore:    14,
			Confidence:      -0.3,
			RiskLevel:       "HIGH",
		}

		// Act
		analysis, err := sacred.NewAnalysis(uuid.New(), "  Thai ", draft, suite.now)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "lemongrass", analysis.HeroIngredient())
		assert.Equal(suite.T(), "thai", analysis.Cuisine())
		assert.Len(suite.T(), analysis.SacredIngredients(), 2)
		assert.Len(suite.T(), analysis.FlexibleIngredients(), 1)
		assert.Equal(suite.T(), []string{"Boil jasmine rice"}, analysis.SideTasksNeeded())
		assert.Equal(suite.T(), sacred.MaxQualityScore, analysis.QualityScore())
		assert.Zero(suite.T(), analysis.Confidence())
		assert.Equal(suite.T(), sacred.RiskHigh, analysis.RiskLevel())
		assert.True(suite.T(), analysis.IsSacred("FISH SAUCE"))
		assert.False(suite.T(), analysis.IsSacred("thai basil"))
	})

	suite.Run("NoHeroAndNoSacred_ShouldFail", func() {
		_, err := sacred.NewAnalysis(uuid.New(), "thai", sacred.Draft{}, suite.now)

		assert.ErrorIs(suite.T(), err, sacred.ErrHeroRequired)
	})

	suite.Run("NilRecipe_ShouldFail", func() {
		_, err := sacred.NewAnalysis(uuid.Nil, "thai", sacred.Draft{HeroIngredient: "chicken"}, suite.now)

		assert.ErrorIs(suite.T(), err, sacred.ErrRecipeRequired)
	})

	suite.Run("NaNScores_ShouldClampToZero", func() {
		analysis, err := sacred.NewAnalysis(uuid.New(), "", sacred.Draft{
			HeroIngredient: "pork",
			QualityScore:   math.NaN(),
			Confidence:     0.75,
		}, suite.now)

		require.NoError(suite.T(), err)
		assert.Zero(suite.T(), analysis.QualityScore())
		assert.Equal(suite.T(), 0.75, analysis.Confidence())
		assert.Equal(suite.T(), "other", analysis.Cuisine())
		assert.Equal(suite.T(), sacred.RiskMedium, analysis.RiskLevel())
	})
}

func (suite *AnalysisTestSuite) TestAddAdaptation() {
	analysis, err := sacred.NewAnalysis(uuid.New(), "indian", sacred.Draft{HeroIngredient: "paneer"}, suite.now)
	require.NoError(suite.T(), err)

	analysis.AddAdaptation("dropped curry leaves to stay within twelve ingredients")
	analysis.AddAdaptation("  ")

	assert.Equal(suite.T(), []string{"dropped curry leaves to stay within twelve ingredients"}, analysis.AdaptationsMade())
}

func TestCuisineKey(t *testing.T) {
	assert.Equal(t, "south indian", sacred.CuisineKey("  South   Indian "))
	assert.Equal(t, "other", sacred.CuisineKey(""))
}

func TestAnalysisTestSuite(t *testing.T) {
	suite.Run(t, new(AnalysisTestSuite))
}
