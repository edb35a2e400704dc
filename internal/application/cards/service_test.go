package cards

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/alchemorsel/recipeflow/test/testutils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

// CardServiceTestSuite provides a test suite for the card service
type CardServiceTestSuite struct {
	suite.Suite
	service   *Service
	recipes   *testutils.MockRecipeRepository
	analyses  *testutils.MockSacredAnalysisRepository
	cards     *testutils.MockCardRepository
	generator *testutils.MockGenerationService
	locks     *testutils.MockLockManager
	metrics   *testutils.RecordingMetrics
	recipe    *recipe.Recipe
}

func (suite *CardServiceTestSuite) SetupTest() {
	suite.recipes = testutils.NewMockRecipeRepository()
	suite.analyses = &testutils.MockSacredAnalysisRepository{}
	suite.cards = &testutils.MockCardRepository{}
	suite.generator = &testutils.MockGenerationService{}
	suite.locks = &testutils.MockLockManager{}
	suite.locks.SetupStandardMockBehavior()
	suite.metrics = testutils.NewRecordingMetrics()

	suite.service = newService(Dependencies{
		Recipes:   suite.recipes,
		Analyses:  suite.analyses,
		Cards:     suite.cards,
		Generator: suite.generator,
		Locks:     suite.locks,
		Metrics:   suite.metrics,
		Validate:  validator.New(),
		Logger:    zaptest.NewLogger(suite.T()),
	}, Config{Temperature: 0.4, MaxTokens: 4096, LockTTL: time.Minute}, time.Now)

	suite.recipe = testutils.NewRecipeBuilder().
		WithTitle("Chicken Tikka Masala").
		WithCuisine("Indian").
		WithIngredients([]recipe.Ingredient{
			{Name: "Chicken Thigh", Quantity: "500", Unit: "g", IsSacred: true},
			{Name: "Garam Masala", Quantity: "2", Unit: "tsp", IsSacred: true},
			{Name: "Tinned Tomatoes", Quantity: "400", Unit: "g"},
			{Name: "Basmati Rice", Quantity: "1", Unit: "cup"},
			{Name: "salt", IsPantryStaple: true},
		}).
		MustBuild()
	suite.recipes.On("FindByID", mock.Anything, suite.recipe.ID()).Return(suite.recipe, nil).Maybe()
}

func (suite *CardServiceTestSuite) respondWith(payload string) *generation.Request {
	req := &generation.Request{}
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { *req = *args.Get(1).(*generation.Request) }).
		Return(&generation.Response{ToolArguments: payload}, nil).Once()
	return req
}

func (suite *CardServiceTestSuite) withoutAnalysis() {
	suite.analyses.On("FindByRecipeID", mock.Anything, suite.recipe.ID()).Return(nil, sacred.ErrAnalysisNotFound).Once()
}

func (suite *CardServiceTestSuite) TestGenerate_WithoutSacredAnalysis() {
	// Arrange
	suite.withoutAnalysis()
	sent := suite.respondWith(testutils.CardsPayloadJSON(testutils.CardDrafts(5, []string{"Chicken Thigh", "Basmati Rice"})))
	var stored []*card.WorkflowCard
	suite.cards.On("ReplaceForRecipe", mock.Anything, suite.recipe, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(2).([]*card.WorkflowCard) }).
		Return(nil).Once()

	// Act
	result, err := suite.service.Generate(context.Background(), suite.recipe.ID())

	// Assert
	suite.Require().NoError(err)
	suite.False(result.SacredAware)
	suite.Equal(5, result.CardCount)
	suite.Require().Len(stored, 5)
	for i, c := range stored {
		suite.Equal(i+1, c.CardNumber())
	}
	suite.Equal(recipe.PipelineStatusCardsReady, suite.recipe.PipelineStatus())
	suite.Contains(sent.Messages[1].Content, card.NoSacredAnalysisMarker)
	suite.Equal(RecordCardsTool, sent.Tool.Name)
	suite.Equal([]string{outbound.OutcomeSuccess}, suite.metrics.Outcomes("cards"))
}

func (suite *CardServiceTestSuite) TestGenerate_WithSacredAnalysis() {
	analysis := testutils.NewAnalysisBuilder("Indian").ForRecipe(suite.recipe.ID()).
		WithHero("Chicken Thigh").WithSacred("Chicken Thigh", "Garam Masala").
		WithSideTasks("boil basmati rice").MustBuild()
	suite.analyses.On("FindByRecipeID", mock.Anything, suite.recipe.ID()).Return(analysis, nil).Once()
	sent := suite.respondWith(testutils.CardsPayloadJSON(testutils.CardDrafts(4, nil)))
	suite.cards.On("ReplaceForRecipe", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	result, err := suite.service.Generate(context.Background(), suite.recipe.ID())

	suite.Require().NoError(err)
	suite.True(result.SacredAware)
	suite.Contains(sent.Messages[1].Content, "Hero: Chicken Thigh")
	suite.Contains(sent.Messages[1].Content, "Side tasks: boil basmati rice")
	suite.Contains(sent.Messages[1].Content, "Chicken Thigh (500 g) [SACRED]")
}

func (suite *CardServiceTestSuite) TestGenerate_CanonicalizesIngredientNames() {
	// Arrange
	suite.withoutAnalysis()
	drafts := testutils.CardDrafts(4, nil)
	drafts[0].IngredientsUsed = []card.IngredientUse{
		{Name: "CHICKEN THIGH", Qty: "500 g", Action: "sear"},
		{Name: "unicorn tears", Qty: "1", Action: "drizzle"},
	}
	drafts[1].IngredientsUsed = []card.IngredientUse{{Name: " garam masala ", Action: "bloom"}}
	suite.respondWith(testutils.CardsPayloadJSON(drafts))
	var stored []*card.WorkflowCard
	suite.cards.On("ReplaceForRecipe", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(2).([]*card.WorkflowCard) }).
		Return(nil).Once()

	// Act
	_, err := suite.service.Generate(context.Background(), suite.recipe.ID())

	// Assert
	suite.Require().NoError(err)
	recipeNames := map[string]bool{}
	for _, ing := range suite.recipe.Ingredients() {
		recipeNames[ing.Name] = true
	}
	for _, c := range stored {
		for _, use := range c.IngredientsUsed() {
			suite.True(recipeNames[use.Name], "unexpected ingredient %q", use.Name)
		}
	}
	suite.Equal("Chicken Thigh", stored[0].IngredientsUsed()[0].Name)
	suite.Len(stored[0].IngredientsUsed(), 1)
	suite.Equal("Garam Masala", stored[1].IngredientsUsed()[0].Name)
}

func (suite *CardServiceTestSuite) TestGenerate_RegenerationReplacesWholeSet() {
	// Arrange
	suite.analyses.On("FindByRecipeID", mock.Anything, suite.recipe.ID()).Return(nil, sacred.ErrAnalysisNotFound).Twice()
	suite.respondWith(testutils.CardsPayloadJSON(testutils.CardDrafts(6, nil)))
	suite.respondWith(testutils.CardsPayloadJSON(testutils.CardDrafts(4, nil)))
	var sets [][]*card.WorkflowCard
	suite.cards.On("ReplaceForRecipe", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sets = append(sets, args.Get(2).([]*card.WorkflowCard)) }).
		Return(nil).Twice()

	// Act
	first, err := suite.service.Generate(context.Background(), suite.recipe.ID())
	suite.Require().NoError(err)
	second, err := suite.service.Generate(context.Background(), suite.recipe.ID())
	suite.Require().NoError(err)

	// Assert
	suite.Equal(6, first.CardCount)
	suite.Equal(4, second.CardCount)
	suite.Require().Len(sets, 2)
	suite.Len(sets[1], 4)
	firstIDs := map[uuid.UUID]bool{}
	for _, c := range sets[0] {
		firstIDs[c.ID()] = true
	}
	for _, c := range sets[1] {
		suite.False(firstIDs[c.ID()])
	}
}

func (suite *CardServiceTestSuite) TestGenerate_AcceptsBareArray() {
	suite.withoutAnalysis()
	wrapped := testutils.CardsPayloadJSON(testutils.CardDrafts(4, nil))
	bare := strings.TrimSuffix(strings.TrimPrefix(wrapped, `{"cards":`), "}")
	suite.respondWith("```json\n" + bare + "\n```")
	suite.cards.On("ReplaceForRecipe", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	result, err := suite.service.Generate(context.Background(), suite.recipe.ID())

	suite.Require().NoError(err)
	suite.Equal(4, result.CardCount)
}

func (suite *CardServiceTestSuite) TestGenerate_FailuresLeaveCardsUntouched() {
	tests := []struct {
		name     string
		setup    func()
		expected apperrors.ErrorCode
	}{
		{
			name: "TooFewCards",
			setup: func() {
				suite.respondWith(testutils.CardsPayloadJSON(testutils.CardDrafts(3, nil)))
			},
			expected: apperrors.CodeParseFailed,
		},
		{
			name: "VagueMarker",
			setup: func() {
				drafts := testutils.CardDrafts(4, nil)
				drafts[2].SuccessMarker = "Until done."
				suite.respondWith(testutils.CardsPayloadJSON(drafts))
			},
			expected: apperrors.CodeParseFailed,
		},
		{
			name: "Garbled",
			setup: func() {
				suite.respondWith("Sorry, here are some cards: none")
			},
			expected: apperrors.CodeParseFailed,
		},
		{
			name: "Upstream",
			setup: func() {
				suite.generator.On("Generate", mock.Anything, mock.Anything).
					Return(nil, generation.NewUpstreamError("mock", errors.New("502"))).Once()
			},
			expected: apperrors.CodeUpstreamGeneration,
		},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.SetupTest()
			suite.withoutAnalysis()
			tt.setup()

			_, err := suite.service.Generate(context.Background(), suite.recipe.ID())

			suite.True(apperrors.Is(err, tt.expected), "got %v", err)
			suite.cards.AssertNotCalled(suite.T(), "ReplaceForRecipe", mock.Anything, mock.Anything, mock.Anything)
			suite.Equal(recipe.PipelineStatusExtracted, suite.recipe.PipelineStatus())
		})
	}
}

func (suite *CardServiceTestSuite) TestGenerate_UnknownRecipe() {
	missing := uuid.New()
	suite.recipes.On("FindByID", mock.Anything, missing).Return(nil, recipe.ErrRecipeNotFound).Once()

	_, err := suite.service.Generate(context.Background(), missing)

	suite.True(apperrors.Is(err, apperrors.CodeRecipeNotFound))
	suite.generator.AssertNotCalled(suite.T(), "Generate", mock.Anything, mock.Anything)
}

func (suite *CardServiceTestSuite) TestGenerate_NilRecipeID() {
	_, err := suite.service.Generate(context.Background(), uuid.Nil)

	suite.True(apperrors.Is(err, apperrors.CodeValidationFailed))
}

func (suite *CardServiceTestSuite) TestGenerate_LockTimeout() {
	suite.withoutAnalysis()
	suite.respondWith(testutils.CardsPayloadJSON(testutils.CardDrafts(4, nil)))
	suite.locks.ExpectedCalls = nil
	suite.locks.On("Acquire", mock.Anything, "cards:"+suite.recipe.ID().String(), time.Minute).
		Return(nil, outbound.ErrLockTimeout).Once()

	_, err := suite.service.Generate(context.Background(), suite.recipe.ID())

	suite.True(apperrors.Is(err, apperrors.CodeResourceLocked))
	suite.cards.AssertNotCalled(suite.T(), "ReplaceForRecipe", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *CardServiceTestSuite) TestListCards() {
	suite.Run("Existing", func() {
		suite.SetupTest()
		set, _, err := card.NewSet(suite.recipe.ID(), testutils.CardDrafts(4, []string{"Basmati Rice"}), []string{"Basmati Rice"}, time.Now())
		suite.Require().NoError(err)
		suite.recipes.On("Exists", mock.Anything, suite.recipe.ID()).Return(true, nil).Once()
		suite.cards.On("FindByRecipeID", mock.Anything, suite.recipe.ID()).Return(set, nil).Once()

		dtos, err := suite.service.ListCards(context.Background(), suite.recipe.ID())

		suite.Require().NoError(err)
		suite.Require().Len(dtos, 4)
		suite.Equal(1, dtos[0].CardNumber)
		suite.Equal("medium", dtos[0].HeatLevel)
		suite.Equal("Basmati Rice", dtos[0].IngredientsUsed[0].Name)
	})

	suite.Run("MissingRecipe", func() {
		suite.SetupTest()
		id := uuid.New()
		suite.recipes.On("Exists", mock.Anything, id).Return(false, nil).Once()

		_, err := suite.service.ListCards(context.Background(), id)

		suite.True(apperrors.Is(err, apperrors.CodeRecipeNotFound))
	})
}

func TestCardServiceSuite(t *testing.T) {
	suite.Run(t, new(CardServiceTestSuite))
}
