package gorm_test

import (
	"context"
	"testing"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/domain/upload"
	gormrepo "github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/alchemorsel/recipeflow/test/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type RepositoryTestSuite struct {
	suite.Suite
	ctx       context.Context
	db        *gorm.DB
	uploads   outbound.UploadRepository
	recipes   outbound.RecipeRepository
	analyses  outbound.SacredAnalysisRepository
	knowledge outbound.KnowledgeRepository
	cards     outbound.CardRepository
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutils.NewSQLiteDB(s.T())
	s.uploads = gormrepo.NewUploadRepository(s.db)
	s.recipes = gormrepo.NewRecipeRepository(s.db)
	s.analyses = gormrepo.NewSacredAnalysisRepository(s.db)
	s.knowledge = gormrepo.NewKnowledgeRepository(s.db)
	s.cards = gormrepo.NewCardRepository(s.db)
}

func (s *RepositoryTestSuite) saveRecipe(cuisine string, withAnalysis bool, at time.Time) (*recipe.Recipe, *sacred.Analysis) {
	r := testutils.NewRecipeBuilder().WithCuisine(cuisine).At(at).MustBuild()

	var analysis *sacred.Analysis
	if withAnalysis {
		analysis = testutils.NewAnalysisBuilder(cuisine).ForRecipe(r.ID()).At(at).MustBuild()
	}
	s.Require().NoError(s.recipes.SaveExtraction(s.ctx, r, analysis))
	return r, analysis
}

func (s *RepositoryTestSuite) TestUploadLifecycle() {
	now := time.Now().UTC()
	u, err := upload.NewUpload(upload.SourceKindURL, now)
	s.Require().NoError(err)
	s.Require().NoError(s.uploads.Create(s.ctx, u))

	stored, err := s.uploads.FindByID(s.ctx, u.ID())
	s.Require().NoError(err)
	s.Equal(upload.StatusProcessing, stored.Status())
	s.Equal(upload.SourceKindURL, stored.SourceKind())
	s.Nil(stored.RecipeID())

	s.Require().NoError(u.AttachRawContent("file:///tmp/raw/abc"))
	recipeID := uuid.New()
	s.Require().NoError(u.Complete(recipeID, now.Add(time.Second)))
	s.Require().NoError(s.uploads.Update(s.ctx, u))

	stored, err = s.uploads.FindByID(s.ctx, u.ID())
	s.Require().NoError(err)
	s.Equal(upload.StatusCompleted, stored.Status())
	s.Equal("file:///tmp/raw/abc", stored.RawContentRef())
	s.Require().NotNil(stored.RecipeID())
	s.Equal(recipeID, *stored.RecipeID())
	s.NotNil(stored.CompletedAt())
}

func (s *RepositoryTestSuite) TestUploadNotFound() {
	_, err := s.uploads.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, upload.ErrUploadNotFound)

	u, err := upload.NewUpload(upload.SourceKindText, time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.uploads.Update(s.ctx, u), upload.ErrUploadNotFound)
}

func (s *RepositoryTestSuite) TestSaveExtraction_RoundTrip() {
	r, analysis := s.saveRecipe("Indian", true, time.Now().UTC())

	stored, err := s.recipes.FindByID(s.ctx, r.ID())
	s.Require().NoError(err)
	testutils.NewRecipeAssertions(s.T()).ValidExtraction(stored)

	s.Equal(r.Title(), stored.Title())
	s.Equal(r.Slug(), stored.Slug())
	s.Equal(recipe.PipelineStatusExtracted, stored.PipelineStatus())
	s.Require().Len(stored.Ingredients(), len(r.Ingredients()))
	for i, ing := range r.Ingredients() {
		s.Equal(ing.ID, stored.Ingredients()[i].ID)
		s.Equal(ing.Name, stored.Ingredients()[i].Name)
		s.Equal(ing.IsPantryStaple, stored.Ingredients()[i].IsPantryStaple)
	}

	storedAnalysis, err := s.analyses.FindByRecipeID(s.ctx, r.ID())
	s.Require().NoError(err)
	s.Equal("indian", storedAnalysis.Cuisine())
	s.Equal(analysis.HeroIngredient(), storedAnalysis.HeroIngredient())
	s.Equal(analysis.SacredIngredients(), storedAnalysis.SacredIngredients())

	exists, err := s.recipes.Exists(s.ctx, r.ID())
	s.Require().NoError(err)
	s.True(exists)
}

func (s *RepositoryTestSuite) TestSaveExtraction_WithoutAnalysis() {
	r, _ := s.saveRecipe("Thai", false, time.Now().UTC())

	_, err := s.analyses.FindByRecipeID(s.ctx, r.ID())
	s.ErrorIs(err, sacred.ErrAnalysisNotFound)
}

func (s *RepositoryTestSuite) TestSaveExtraction_DuplicateSlugLeavesNothing() {
	first, _ := s.saveRecipe("Italian", false, time.Now().UTC())

	second := testutils.NewRecipeBuilder().MustBuild()
	state := second.State()
	state.Slug = first.Slug()
	clash, err := recipe.Restore(state)
	s.Require().NoError(err)

	analysis := testutils.NewAnalysisBuilder("Italian").ForRecipe(clash.ID()).MustBuild()
	err = s.recipes.SaveExtraction(s.ctx, clash, analysis)
	s.ErrorIs(err, recipe.ErrDuplicateSlug)

	exists, err := s.recipes.Exists(s.ctx, clash.ID())
	s.Require().NoError(err)
	s.False(exists)

	var ingredients int64
	s.Require().NoError(s.db.Model(&gormrepo.IngredientModel{}).Where("recipe_id = ?", clash.ID()).Count(&ingredients).Error)
	s.Zero(ingredients)

	_, err = s.analyses.FindByRecipeID(s.ctx, clash.ID())
	s.ErrorIs(err, sacred.ErrAnalysisNotFound)
}

func (s *RepositoryTestSuite) TestFindRecipe_NotFound() {
	_, err := s.recipes.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, recipe.ErrRecipeNotFound)

	exists, err := s.recipes.Exists(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.False(exists)
}

func (s *RepositoryTestSuite) TestAnalysesByCuisine_OldestFirst() {
	base := time.Now().UTC().Add(-time.Hour)
	second, _ := s.saveRecipe("Indian", true, base.Add(2*time.Minute))
	first, _ := s.saveRecipe("indian", true, base)
	s.saveRecipe("Mexican", true, base)
	s.saveRecipe("French", false, base)

	analyses, err := s.analyses.FindByCuisine(s.ctx, "indian")
	s.Require().NoError(err)
	s.Require().Len(analyses, 2)
	s.Equal(first.ID(), analyses[0].RecipeID())
	s.Equal(second.ID(), analyses[1].RecipeID())

	cuisines, err := s.analyses.ListCuisines(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"indian", "mexican"}, cuisines)
}

func (s *RepositoryTestSuite) TestKnowledgeUpsertAndTop() {
	learnedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kb := &knowledge.KnowledgeBase{
		Cuisine: "indian",
		CommonSacredIngredients: []knowledge.SacredIngredientStat{
			{Ingredient: "garam masala", Frequency: 100, Count: 3, Reason: "defines the blend"},
		},
		CommonSacredTechniques: []string{"bloom spices in ghee"},
		RecipeCount:            3,
		AvgQualityScore:        7.5,
		LastLearnedAt:          learnedAt,
	}
	s.Require().NoError(s.knowledge.Upsert(s.ctx, kb))

	kb.RecipeCount = 4
	kb.AvgQualityScore = 8
	s.Require().NoError(s.knowledge.Upsert(s.ctx, kb))

	s.Require().NoError(s.knowledge.Upsert(s.ctx, &knowledge.KnowledgeBase{Cuisine: "thai", RecipeCount: 4, LastLearnedAt: learnedAt}))
	s.Require().NoError(s.knowledge.Upsert(s.ctx, &knowledge.KnowledgeBase{Cuisine: "french", RecipeCount: 2, LastLearnedAt: learnedAt}))

	stored, err := s.knowledge.FindByCuisine(s.ctx, "indian")
	s.Require().NoError(err)
	s.Equal(4, stored.RecipeCount)
	s.InDelta(8.0, stored.AvgQualityScore, 0.001)
	s.Equal(kb.CommonSacredIngredients, stored.CommonSacredIngredients)
	s.True(learnedAt.Equal(stored.LastLearnedAt))

	top, err := s.knowledge.Top(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal("indian", top[0].Cuisine)
	s.Equal("thai", top[1].Cuisine)

	_, err = s.knowledge.FindByCuisine(s.ctx, "nordic")
	s.ErrorIs(err, knowledge.ErrNotFound)
}

func (s *RepositoryTestSuite) TestReplaceCards() {
	r, _ := s.saveRecipe("Italian", false, time.Now().UTC())
	names := make([]string, 0, len(r.Ingredients()))
	for _, ing := range r.Ingredients() {
		names = append(names, ing.Name)
	}

	now := time.Now().UTC()
	firstSet, _, err := card.NewSet(r.ID(), testutils.CardDrafts(6, names), names, now)
	s.Require().NoError(err)
	r.MarkCardsReady(len(firstSet), now)
	s.Require().NoError(s.cards.ReplaceForRecipe(s.ctx, r, firstSet))

	secondSet, _, err := card.NewSet(r.ID(), testutils.CardDrafts(4, names), names, now.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.cards.ReplaceForRecipe(s.ctx, r, secondSet))

	stored, err := s.cards.FindByRecipeID(s.ctx, r.ID())
	s.Require().NoError(err)
	s.Require().Len(stored, 4)
	testutils.NewCardAssertions(s.T()).ValidSet(r.ID(), stored)
	for i, c := range stored {
		s.Equal(secondSet[i].ID(), c.ID())
		s.Equal(secondSet[i].IngredientsUsed(), c.IngredientsUsed())
	}

	storedRecipe, err := s.recipes.FindByID(s.ctx, r.ID())
	s.Require().NoError(err)
	s.Equal(recipe.PipelineStatusCardsReady, storedRecipe.PipelineStatus())
}

func (s *RepositoryTestSuite) TestReplaceCards_UnknownRecipe() {
	r := testutils.NewRecipeBuilder().MustBuild()
	set, _, err := card.NewSet(r.ID(), testutils.CardDrafts(4, nil), nil, time.Now())
	s.Require().NoError(err)

	s.ErrorIs(s.cards.ReplaceForRecipe(s.ctx, r, set), recipe.ErrRecipeNotFound)

	stored, err := s.cards.FindByRecipeID(s.ctx, r.ID())
	s.Require().NoError(err)
	s.Empty(stored)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestJSONList_NullScansEmpty(t *testing.T) {
	var list gormrepo.JSONList[card.IngredientUse]
	require.NoError(t, list.Scan(nil))
	assert.Empty(t, list)

	value, err := list.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	require.NoError(t, list.Scan([]byte(`[{"name":"garlic","qty":"2 cloves","action":"crush"}]`)))
	assert.Equal(t, gormrepo.JSONList[card.IngredientUse]{{Name: "garlic", Qty: "2 cloves", Action: "crush"}}, list)
}
