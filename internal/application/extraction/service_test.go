package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/upload"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/alchemorsel/recipeflow/test/testutils"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

// ExtractionServiceTestSuite provides a test suite for the extraction service
type ExtractionServiceTestSuite struct {
	suite.Suite
	service   *Service
	uploads   *testutils.MockUploadRepository
	recipes   *testutils.MockRecipeRepository
	generator *testutils.MockGenerationService
	fetcher   *testutils.MockSourceFetcher
	blobs     *testutils.MockBlobStore
	knowledge *testutils.MockKnowledgeService
	metrics   *testutils.RecordingMetrics
	now       time.Time
}

func (suite *ExtractionServiceTestSuite) SetupTest() {
	suite.uploads = testutils.NewMockUploadRepository()
	suite.uploads.SetupStandardMockBehavior()
	suite.recipes = testutils.NewMockRecipeRepository()
	suite.generator = &testutils.MockGenerationService{}
	suite.fetcher = &testutils.MockSourceFetcher{}
	suite.blobs = &testutils.MockBlobStore{}
	suite.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("memory://raw/abc", nil).Maybe()
	suite.knowledge = &testutils.MockKnowledgeService{}
	suite.metrics = testutils.NewRecordingMetrics()
	suite.now = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

	suite.service = newService(Dependencies{
		Uploads:   suite.uploads,
		Recipes:   suite.recipes,
		Generator: suite.generator,
		Fetcher:   suite.fetcher,
		Blobs:     suite.blobs,
		Knowledge: suite.knowledge,
		Metrics:   suite.metrics,
		Validate:  validator.New(),
		Logger:    zaptest.NewLogger(suite.T()),
	}, Config{Temperature: 0.2, MaxTokens: 4096}, func() time.Time { return suite.now })
}

func (suite *ExtractionServiceTestSuite) respondWith(payload string) {
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Return(&generation.Response{ToolArguments: payload, Model: "stub"}, nil).Once()
}

func (suite *ExtractionServiceTestSuite) expectContext(text string) {
	suite.knowledge.On("BuildContext", mock.Anything).Return(text, nil).Once()
}

func curryPayload() string {
	b := testutils.NewRecipePayloadBuilder("Chicken Tikka Masala", "Indian").
		WithIngredient("chicken thigh", false, true).
		WithIngredient("garam masala", false, true)
	for i := 1; i <= 18; i++ {
		b.WithIngredient(fmt.Sprintf("extra spice %d", i), false, false)
	}
	return b.
		WithIngredient("salt", true, false).
		WithIngredient("vegetable oil", true, false).
		WithIngredient("water", true, false).
		WithField("total_time_minutes", 95).
		WithSacredAnalysis(map[string]any{
			"hero_ingredient": "chicken thigh",
			"sacred_ingredients": []map[string]any{
				{"ingredient": "chicken thigh", "reason": "the dish is named for it"},
				{"ingredient": "garam masala", "reason": "defines the flavour"},
			},
			"sacred_technique":       "char then simmer in sauce",
			"sacred_flavour_profile": "smoky, creamy, warmly spiced",
			"flexible_ingredients": []map[string]any{
				{"ingredient": "extra spice 18", "can_remove": true},
				{"ingredient": "cream", "can_remove": false, "substitute": "yoghurt"},
			},
			"side_tasks_needed": []string{"boil basmati rice"},
			"one_pot_feasible":  true,
			"quality_score":     "8.5",
			"confidence":        0.9,
			"risk_level":        "low",
			"adaptations_made":  []string{"merged whole spices into garam masala"},
		}).
		JSON()
}

func (suite *ExtractionServiceTestSuite) TestExtract_CurryEndToEnd() {
	// Arrange
	ctx := context.Background()
	suite.expectContext(knowledge.NoPriorKnowledgeMarker)
	suite.respondWith(curryPayload())
	suite.recipes.On("SaveExtraction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	suite.knowledge.On("LearnBestEffort", mock.Anything, "indian").Once()

	// Act
	result, err := suite.service.Extract(ctx, inbound.ExtractCommand{
		UploadType: "text",
		RawText:    strings.Repeat("A very long curry recipe. ", 20),
	})

	// Assert
	suite.Require().NoError(err)
	suite.Require().NotNil(result.SacredAnalysis)
	suite.Equal("chicken thigh", result.SacredAnalysis.Hero)
	suite.Equal(8.5, result.SacredAnalysis.Quality)
	suite.Equal(2, result.SacredAnalysis.SacredCount)

	saved := suite.recipes.Saved()
	suite.Require().Len(saved, 1)
	r := saved[0]
	suite.Equal(result.RecipeID, r.ID())
	suite.LessOrEqual(recipe.CountNonStaples(r.Ingredients()), recipe.MaxNonStapleCount)
	suite.Equal(recipe.MaxTotalMinutes, r.TotalTimeMinutes())
	suite.Equal(3, len(r.Ingredients())-recipe.CountNonStaples(r.Ingredients()))

	analysis := suite.recipes.SavedAnalysis(r.ID())
	suite.Require().NotNil(analysis)
	suite.True(analysis.OnePotFeasible())
	suite.Contains(analysis.SideTasksNeeded(), "boil basmati rice")
	suite.Equal("indian", analysis.Cuisine())
	suite.Len(result.SacredAnalysis.Adaptations, 2)
	suite.Contains(result.SacredAnalysis.Adaptations[1], "extra spice 18")

	state := suite.uploads.Only()
	suite.Equal(upload.StatusCompleted, state.Status)
	suite.Equal(r.ID(), *state.RecipeID)
	suite.Equal("memory://raw/abc", state.RawContentRef)
	suite.Equal([]string{outbound.OutcomeSuccess}, suite.metrics.Outcomes("extraction"))
	suite.knowledge.AssertExpectations(suite.T())
}

func (suite *ExtractionServiceTestSuite) TestExtract_GarbledOutput() {
	// Arrange
	suite.expectContext(knowledge.NoPriorKnowledgeMarker)
	garbled := strings.Repeat("I am not JSON at all ", 40)
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Return(&generation.Response{Text: garbled}, nil).Once()

	// Act
	result, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "text", RawText: "Some recipe"})

	// Assert
	suite.Nil(result)
	suite.True(apperrors.Is(err, apperrors.CodeParseFailed))

	state := suite.uploads.Only()
	suite.Equal(upload.StatusFailed, state.Status)
	suite.Contains(state.ErrorMessage, "invalid JSON")
	suite.Contains(state.ErrorMessage, "I am not JSON")
	suite.LessOrEqual(len([]rune(state.ErrorMessage)), upload.MaxErrorMessageLength)
	suite.Nil(state.RecipeID)

	suite.recipes.AssertNotCalled(suite.T(), "SaveExtraction", mock.Anything, mock.Anything, mock.Anything)
	suite.knowledge.AssertNotCalled(suite.T(), "LearnBestEffort", mock.Anything, mock.Anything)
	suite.Equal([]string{outbound.OutcomeParse}, suite.metrics.Outcomes("extraction"))
}

func (suite *ExtractionServiceTestSuite) TestExtract_Validation() {
	tests := []struct {
		name string
		cmd  inbound.ExtractCommand
	}{
		{"UnknownType", inbound.ExtractCommand{UploadType: "video", RawText: "x"}},
		{"TextWithoutContent", inbound.ExtractCommand{UploadType: "text", RawText: "   "}},
		{"PDFWithoutText", inbound.ExtractCommand{UploadType: "pdf", FileURL: "https://example.com/a.pdf"}},
		{"URLWithoutSource", inbound.ExtractCommand{UploadType: "url"}},
		{"ImageWithoutFile", inbound.ExtractCommand{UploadType: "image"}},
		{"MalformedURL", inbound.ExtractCommand{UploadType: "url", SourceURL: "not a url"}},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			// Act
			_, err := suite.service.Extract(context.Background(), tt.cmd)

			// Assert
			suite.True(apperrors.Is(err, apperrors.CodeValidationFailed), "got %v", err)
		})
	}
	suite.uploads.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *ExtractionServiceTestSuite) TestExtract_RateLimited() {
	// Arrange
	suite.expectContext("## indian (3 recipes, avg quality 7.00)")
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Return(nil, generation.NewRateLimitError("stub", errors.New("429 Too Many Requests"))).Once()

	// Act
	_, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "text", RawText: "Dal"})

	// Assert
	suite.True(apperrors.Is(err, apperrors.CodeRateLimited))
	state := suite.uploads.Only()
	suite.Equal(upload.StatusFailed, state.Status)
	suite.Contains(state.ErrorMessage, "rate limit")
}

func (suite *ExtractionServiceTestSuite) TestExtract_UpstreamFailure() {
	suite.expectContext(knowledge.NoPriorKnowledgeMarker)
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Return(nil, generation.NewUpstreamError("stub", errors.New("connection reset"))).Once()

	_, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "text", RawText: "Dal"})

	suite.True(apperrors.Is(err, apperrors.CodeUpstreamGeneration))
	suite.Equal(upload.StatusFailed, suite.uploads.Only().Status)
}

func (suite *ExtractionServiceTestSuite) TestExtract_SlugCollisionRetriesOnce() {
	// Arrange
	suite.expectContext(knowledge.NoPriorKnowledgeMarker)
	suite.respondWith(testutils.NewRecipePayloadBuilder("Pad Thai", "Thai").WithIngredient("rice noodles", false, false).JSON())
	var slugs []string
	capture := func(args mock.Arguments) { slugs = append(slugs, args.Get(1).(*recipe.Recipe).Slug()) }
	suite.recipes.On("SaveExtraction", mock.Anything, mock.Anything, mock.Anything).Run(capture).Return(recipe.ErrDuplicateSlug).Once()
	suite.recipes.On("SaveExtraction", mock.Anything, mock.Anything, mock.Anything).Run(capture).Return(nil).Once()

	// Act
	result, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "text", RawText: "Pad thai"})

	// Assert
	suite.Require().NoError(err)
	suite.Nil(result.SacredAnalysis)
	suite.Require().Len(slugs, 2)
	suite.NotEqual(slugs[0], slugs[1])
	suite.True(strings.HasPrefix(slugs[1], "pad-thai-"))
	suite.knowledge.AssertNotCalled(suite.T(), "LearnBestEffort", mock.Anything, mock.Anything)
}

func (suite *ExtractionServiceTestSuite) TestExtract_PersistenceFailure() {
	suite.expectContext(knowledge.NoPriorKnowledgeMarker)
	suite.respondWith(testutils.NewRecipePayloadBuilder("Pad Thai", "Thai").WithIngredient("rice noodles", false, false).JSON())
	suite.recipes.On("SaveExtraction", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	_, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "text", RawText: "Pad thai"})

	suite.True(apperrors.Is(err, apperrors.CodeDatabaseError))
	state := suite.uploads.Only()
	suite.Equal(upload.StatusFailed, state.Status)
	suite.Contains(state.ErrorMessage, "disk full")
}

func (suite *ExtractionServiceTestSuite) TestExtract_URLSourceIsFetched() {
	// Arrange
	suite.fetcher.On("FetchPage", mock.Anything, "https://example.com/ragu").Return("Slow ragu with pappardelle", nil).Once()
	suite.expectContext(knowledge.NoPriorKnowledgeMarker)
	var sent *generation.Request
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*generation.Request) }).
		Return(&generation.Response{Text: "```json\n" + testutils.NewRecipePayloadBuilder("Ragu", "Italian").WithIngredient("beef shin", false, false).JSON() + "\n```"}, nil).Once()
	suite.recipes.On("SaveExtraction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	// Act
	_, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "url", SourceURL: "https://example.com/ragu"})

	// Assert
	suite.Require().NoError(err)
	suite.Require().NotNil(sent)
	suite.Contains(sent.Messages[1].Content, "Slow ragu with pappardelle")
	suite.Contains(sent.Messages[1].Content, "https://example.com/ragu")
	suite.Equal("https://example.com/ragu", suite.recipes.Saved()[0].SourceURL())
}

func (suite *ExtractionServiceTestSuite) TestExtract_ImageSourceIsInlined() {
	img := &generation.Image{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
	suite.fetcher.On("FetchImage", mock.Anything, "https://example.com/card.jpg").Return(img, nil).Once()
	suite.expectContext(knowledge.NoPriorKnowledgeMarker)
	var sent *generation.Request
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*generation.Request) }).
		Return(&generation.Response{ToolArguments: testutils.NewRecipePayloadBuilder("Shakshuka", "Middle Eastern").WithIngredient("eggs", false, true).JSON()}, nil).Once()
	suite.recipes.On("SaveExtraction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "image", FileURL: "https://example.com/card.jpg"})

	suite.Require().NoError(err)
	suite.Require().Len(sent.Messages[1].Images, 1)
	suite.Equal("image/jpeg", sent.Messages[1].Images[0].MIMEType)
	suite.blobs.AssertCalled(suite.T(), "Put", mock.Anything, img.Data, "image/jpeg")
}

func (suite *ExtractionServiceTestSuite) TestExtract_SourceFetchFailure() {
	suite.fetcher.On("FetchPage", mock.Anything, mock.Anything).Return("", errors.New("404 not found")).Once()

	_, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "url", SourceURL: "https://example.com/gone"})

	suite.True(apperrors.Is(err, apperrors.CodeSourceFetchFailed))
	suite.Equal(upload.StatusFailed, suite.uploads.Only().Status)
	suite.generator.AssertNotCalled(suite.T(), "Generate", mock.Anything, mock.Anything)
}

func (suite *ExtractionServiceTestSuite) TestExtract_DegradesWhenContextAndArchiveFail() {
	// Arrange
	suite.knowledge.On("BuildContext", mock.Anything).Return("", errors.New("redis down")).Once()
	suite.blobs.ExpectedCalls = nil
	suite.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket missing")).Once()
	var sent *generation.Request
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*generation.Request) }).
		Return(&generation.Response{ToolArguments: testutils.NewRecipePayloadBuilder("Dal", "Indian").WithIngredient("red lentils", false, true).JSON()}, nil).Once()
	suite.recipes.On("SaveExtraction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	// Act
	_, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "text", RawText: "Dal"})

	// Assert
	suite.Require().NoError(err)
	suite.Contains(sent.SystemPrompt(), knowledge.NoPriorKnowledgeMarker)
	state := suite.uploads.Only()
	suite.Equal(upload.StatusCompleted, state.Status)
	suite.Empty(state.RawContentRef)
}

func (suite *ExtractionServiceTestSuite) TestExtract_PromptCarriesToolAndRules() {
	suite.expectContext("## thai (4 recipes, avg quality 8.00)")
	var sent *generation.Request
	suite.generator.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*generation.Request) }).
		Return(&generation.Response{ToolArguments: testutils.NewRecipePayloadBuilder("Larb", "Thai").WithIngredient("pork mince", false, true).JSON()}, nil).Once()
	suite.recipes.On("SaveExtraction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := suite.service.Extract(context.Background(), inbound.ExtractCommand{UploadType: "text", RawText: "Larb"})

	suite.Require().NoError(err)
	suite.Require().NotNil(sent.Tool)
	suite.Equal(RecordRecipeTool, sent.Tool.Name)
	suite.Equal(0.2, *sent.Temperature)
	suite.Contains(sent.SystemPrompt(), "at most 12 ingredients")
	suite.Contains(sent.SystemPrompt(), "## thai (4 recipes")
	suite.NoError(sent.Validate())
}

func TestExtractionServiceSuite(t *testing.T) {
	suite.Run(t, new(ExtractionServiceTestSuite))
}
