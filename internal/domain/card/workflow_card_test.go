package card_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type WorkflowCardTestSuite struct {
	suite.Suite
	recipeID    uuid.UUID
	now         time.Time
	ingredients []string
}

func (suite *WorkflowCardTestSuite) SetupTest() {
	suite.recipeID = uuid.New()
	suite.now = time.Now().UTC()
	suite.ingredients = []string{"Chicken Thighs", "coconut milk", "green curry paste", "jasmine rice"}
}

func (suite *WorkflowCardTestSuite) drafts(n int) []card.Draft {
	var drafts []card.Draft
	for i := 0; i < n; i++ {
		drafts = append(drafts, card.Draft{
			Title:         fmt.Sprintf("Step %d", i+1),
			CardType:      "cook",
			HeatLevel:     "medium",
			Instructions:  []string{"Stir well"},
			SuccessMarker: "Sauce coats the back of a spoon",
		})
	}
	return drafts
}

func (suite *WorkflowCardTestSuite) TestNewSet() {
	suite.Run("ValidSet_ShouldNumberAndCanonicalize", func() {
		// Arrange
		timer := 600
		zero := 0
		drafts := suite.drafts(5)
		drafts[0].HeatLevel = "Medium-High"
		drafts[0].IngredientsUsed = []card.IngredientUse{
			{Name: "chicken thighs", Qty: "500 g", Action: "sear"},
			{Name: "kaffir lime", Qty: "2", Action: "tear"},
		}
		drafts[2].TimerSeconds = &timer
		drafts[3].TimerSeconds = &zero
		drafts[2].IngredientsUsed = []card.IngredientUse{{Name: "  Coconut   Milk ", Action: "pour"}}

		// Act
		cards, unknown, err := card.NewSet(suite.recipeID, drafts, suite.ingredients, suite.now)

		// Assert
		require.NoError(suite.T(), err)
		require.Len(suite.T(), cards, 5)
		for i, c := range cards {
			assert.Equal(suite.T(), i+1, c.CardNumber())
			assert.Equal(suite.T(), suite.recipeID, c.RecipeID())
		}
		assert.Equal(suite.T(), card.HeatMediumHigh, cards[0].HeatLevel())
		require.Len(suite.T(), cards[0].IngredientsUsed(), 1)
		assert.Equal(suite.T(), "Chicken Thighs", cards[0].IngredientsUsed()[0].Name)
		assert.Equal(suite.T(), "coconut milk", cards[2].IngredientsUsed()[0].Name)
		assert.Equal(suite.T(), []string{"kaffir lime"}, unknown)
		assert.Equal(suite.T(), 600, *cards[2].TimerSeconds())
		assert.Nil(suite.T(), cards[3].TimerSeconds())
	})

	suite.Run("IngredientsUsed_ShouldBeSubsetOfRecipe", func() {
		drafts := suite.drafts(4)
		for i := range drafts {
			drafts[i].IngredientsUsed = []card.IngredientUse{{Name: "JASMINE RICE"}, {Name: "fish sauce"}, {Name: "Green Curry Paste"}}
		}

		cards, _, err := card.NewSet(suite.recipeID, drafts, suite.ingredients, suite.now)

		require.NoError(suite.T(), err)
		allowed := map[string]bool{}
		for _, name := range suite.ingredients {
			allowed[name] = true
		}
		for _, c := range cards {
			for _, use := range c.IngredientsUsed() {
				assert.True(suite.T(), allowed[use.Name], "unexpected ingredient %q", use.Name)
			}
		}
		assert.Equal(suite.T(), []string{"Chicken Thighs", "coconut milk"}, card.UncoveredIngredients(cards, suite.ingredients))
	})

	suite.Run("WrongCount_ShouldFail", func() {
		for _, n := range []int{0, 3, 7} {
			_, _, err := card.NewSet(suite.recipeID, suite.drafts(n), suite.ingredients, suite.now)
			assert.ErrorIs(suite.T(), err, card.ErrCardCount, "count %d", n)
		}
	})

	suite.Run("VagueMarker_ShouldFail", func() {
		drafts := suite.drafts(4)
		drafts[1].SuccessMarker = "Until done."

		_, _, err := card.NewSet(suite.recipeID, drafts, suite.ingredients, suite.now)

		assert.ErrorIs(suite.T(), err, card.ErrVagueSuccessMarker)
		assert.Contains(suite.T(), err.Error(), "card 2")
	})

	suite.Run("MissingFields_ShouldFail", func() {
		cases := map[string]struct {
			mutate   func(*card.Draft)
			expected error
		}{
			"title":        {func(d *card.Draft) { d.Title = " " }, card.ErrTitleRequired},
			"instructions": {func(d *card.Draft) { d.Instructions = []string{""} }, card.ErrInstructionsRequired},
			"marker":       {func(d *card.Draft) { d.SuccessMarker = "" }, card.ErrSuccessMarkerRequired},
			"heat":         {func(d *card.Draft) { d.HeatLevel = "nuclear" }, card.ErrInvalidHeatLevel},
		}
		for name, tc := range cases {
			drafts := suite.drafts(4)
			tc.mutate(&drafts[3])

			_, _, err := card.NewSet(suite.recipeID, drafts, suite.ingredients, suite.now)

			assert.ErrorIs(suite.T(), err, tc.expected, name)
		}
	})

	suite.Run("NilRecipe_ShouldFail", func() {
		_, _, err := card.NewSet(uuid.Nil, suite.drafts(4), suite.ingredients, suite.now)
		assert.ErrorIs(suite.T(), err, card.ErrRecipeRequired)
	})
}

func TestParseHeatLevel(t *testing.T) {
	level, ok := card.ParseHeatLevel("medium high")
	assert.True(t, ok)
	assert.Equal(t, card.HeatMediumHigh, level)

	level, ok = card.ParseHeatLevel("")
	assert.True(t, ok)
	assert.Equal(t, card.HeatOff, level)

	_, ok = card.ParseHeatLevel("blazing")
	assert.False(t, ok)
}

func TestWorkflowCardTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowCardTestSuite))
}
