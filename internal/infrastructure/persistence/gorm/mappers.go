// Package gorm provides mapping between domain entities and GORM models
package gorm

import (
	"fmt"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/domain/upload"
)

// UploadToModel converts a domain upload to a GORM model
func UploadToModel(u *upload.Upload) *UploadModel {
	s := u.State()
	return &UploadModel{
		ID:            s.ID,
		SourceKind:    string(s.SourceKind),
		RawContentRef: s.RawContentRef,
		Status:        string(s.Status),
		ErrorMessage:  s.ErrorMessage,
		RecipeID:      s.RecipeID,
		CreatedAt:     s.CreatedAt,
		CompletedAt:   s.CompletedAt,
	}
}

// ModelToUpload converts a GORM model to a domain upload
func ModelToUpload(model *UploadModel) *upload.Upload {
	return upload.Restore(upload.State{
		ID:            model.ID,
		SourceKind:    upload.SourceKind(model.SourceKind),
		RawContentRef: model.RawContentRef,
		Status:        upload.Status(model.Status),
		ErrorMessage:  model.ErrorMessage,
		RecipeID:      model.RecipeID,
		CreatedAt:     model.CreatedAt,
		CompletedAt:   model.CompletedAt,
	})
}

// RecipeToModel converts a domain recipe and its ingredients to a GORM model
func RecipeToModel(r *recipe.Recipe) *RecipeModel {
	s := r.State()
	model := &RecipeModel{
		ID:               s.ID,
		UploadID:         s.UploadID,
		Title:            s.Title,
		Slug:             s.Slug,
		Hook:             s.Hook,
		Description:      s.Description,
		Cuisine:          s.Cuisine,
		Vessel:           s.Vessel,
		TotalTimeMinutes: s.TotalTimeMinutes,
		PrepTimeMinutes:  s.PrepTimeMinutes,
		CookTimeMinutes:  s.CookTimeMinutes,
		Serves:           s.Serves,
		Difficulty:       s.Difficulty,
		SpiceLevel:       s.SpiceLevel,
		AdventureLevel:   s.AdventureLevel,
		DietaryTags:      s.DietaryTags,
		SeasonTags:       s.SeasonTags,
		Tips:             s.Tips,
		SourceURL:        s.SourceURL,
		PipelineStatus:   string(s.PipelineStatus),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}

	model.Ingredients = make([]IngredientModel, 0, len(s.Ingredients))
	for _, ing := range s.Ingredients {
		model.Ingredients = append(model.Ingredients, IngredientModel{
			ID:                 ing.ID,
			RecipeID:           s.ID,
			Name:               ing.Name,
			Quantity:           ing.Quantity,
			Unit:               ing.Unit,
			IsPantryStaple:     ing.IsPantryStaple,
			IsSacred:           ing.IsSacred,
			SupermarketSection: ing.SupermarketSection,
			EstimatedCost:      ing.EstimatedCost,
			SortOrder:          ing.SortOrder,
		})
	}
	return model
}

// ModelToRecipe converts a GORM model to a domain recipe. Ingredients are
// expected to be preloaded in sort order.
func ModelToRecipe(model *RecipeModel) (*recipe.Recipe, error) {
	ingredients := make([]recipe.Ingredient, 0, len(model.Ingredients))
	for _, m := range model.Ingredients {
		ingredients = append(ingredients, recipe.Ingredient{
			ID:                 m.ID,
			RecipeID:           m.RecipeID,
			Name:               m.Name,
			Quantity:           m.Quantity,
			Unit:               m.Unit,
			IsPantryStaple:     m.IsPantryStaple,
			IsSacred:           m.IsSacred,
			SupermarketSection: m.SupermarketSection,
			EstimatedCost:      m.EstimatedCost,
			SortOrder:          m.SortOrder,
		})
	}

	r, err := recipe.Restore(recipe.State{
		ID:               model.ID,
		UploadID:         model.UploadID,
		Title:            model.Title,
		Slug:             model.Slug,
		Hook:             model.Hook,
		Description:      model.Description,
		Cuisine:          model.Cuisine,
		Vessel:           model.Vessel,
		TotalTimeMinutes: model.TotalTimeMinutes,
		PrepTimeMinutes:  model.PrepTimeMinutes,
		CookTimeMinutes:  model.CookTimeMinutes,
		Serves:           model.Serves,
		Difficulty:       model.Difficulty,
		SpiceLevel:       model.SpiceLevel,
		AdventureLevel:   model.AdventureLevel,
		DietaryTags:      model.DietaryTags,
		SeasonTags:       model.SeasonTags,
		Tips:             model.Tips,
		SourceURL:        model.SourceURL,
		Ingredients:      ingredients,
		PipelineStatus:   recipe.PipelineStatus(model.PipelineStatus),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("restore recipe %s: %w", model.ID, err)
	}
	return r, nil
}

// AnalysisToModel converts a domain sacred analysis to a GORM model
func AnalysisToModel(a *sacred.Analysis) *SacredAnalysisModel {
	s := a.State()
	return &SacredAnalysisModel{
		RecipeID:             s.RecipeID,
		Cuisine:              s.Cuisine,
		HeroIngredient:       s.HeroIngredient,
		SacredIngredients:    s.SacredIngredients,
		SacredTechnique:      s.SacredTechnique,
		SacredFlavourProfile: s.SacredFlavourProfile,
		FlexibleIngredients:  s.FlexibleIngredients,
		SideTasksNeeded:      s.SideTasksNeeded,
		OnePotFeasible:       s.OnePotFeasible,
		QualityScore:         s.QualityScore,
		Confidence:           s.Confidence,
		RiskLevel:            string(s.RiskLevel),
		AdaptationsMade:      s.AdaptationsMade,
		CreatedAt:            s.CreatedAt,
	}
}

// ModelToAnalysis converts a GORM model to a domain sacred analysis
func ModelToAnalysis(model *SacredAnalysisModel) *sacred.Analysis {
	return sacred.Restore(sacred.State{
		RecipeID:             model.RecipeID,
		Cuisine:              model.Cuisine,
		HeroIngredient:       model.HeroIngredient,
		SacredIngredients:    model.SacredIngredients,
		SacredTechnique:      model.SacredTechnique,
		SacredFlavourProfile: model.SacredFlavourProfile,
		FlexibleIngredients:  model.FlexibleIngredients,
		SideTasksNeeded:      model.SideTasksNeeded,
		OnePotFeasible:       model.OnePotFeasible,
		QualityScore:         model.QualityScore,
		Confidence:           model.Confidence,
		RiskLevel:            sacred.RiskLevel(model.RiskLevel),
		AdaptationsMade:      model.AdaptationsMade,
		CreatedAt:            model.CreatedAt,
	})
}

// KnowledgeBaseToModel converts a knowledge base to a GORM model
func KnowledgeBaseToModel(kb *knowledge.KnowledgeBase) *KnowledgeBaseModel {
	return &KnowledgeBaseModel{
		Cuisine:                 kb.Cuisine,
		CommonSacredIngredients: kb.CommonSacredIngredients,
		CommonSacredTechniques:  kb.CommonSacredTechniques,
		CommonFlavourProfiles:   kb.CommonFlavourProfiles,
		TypicalHeroIngredients:  kb.TypicalHeroIngredients,
		CommonlyRemoved:         kb.CommonlyRemoved,
		CommonSubstitutions:     kb.CommonSubstitutions,
		CommonSideTasks:         kb.CommonSideTasks,
		RecipeCount:             kb.RecipeCount,
		AvgQualityScore:         kb.AvgQualityScore,
		LastLearnedAt:           kb.LastLearnedAt,
	}
}

// ModelToKnowledgeBase converts a GORM model to a knowledge base
func ModelToKnowledgeBase(model *KnowledgeBaseModel) *knowledge.KnowledgeBase {
	return &knowledge.KnowledgeBase{
		Cuisine:                 model.Cuisine,
		CommonSacredIngredients: model.CommonSacredIngredients,
		CommonSacredTechniques:  model.CommonSacredTechniques,
		CommonFlavourProfiles:   model.CommonFlavourProfiles,
		TypicalHeroIngredients:  model.TypicalHeroIngredients,
		CommonlyRemoved:         model.CommonlyRemoved,
		CommonSubstitutions:     model.CommonSubstitutions,
		CommonSideTasks:         model.CommonSideTasks,
		RecipeCount:             model.RecipeCount,
		AvgQualityScore:         model.AvgQualityScore,
		LastLearnedAt:           model.LastLearnedAt.UTC(),
	}
}

// CardToModel converts a domain workflow card to a GORM model
func CardToModel(c *card.WorkflowCard) *WorkflowCardModel {
	s := c.State()
	return &WorkflowCardModel{
		ID:              s.ID,
		RecipeID:        s.RecipeID,
		CardNumber:      s.CardNumber,
		Title:           s.Title,
		CardType:        s.CardType,
		HeatLevel:       string(s.HeatLevel),
		Instructions:    s.Instructions,
		SuccessMarker:   s.SuccessMarker,
		TimerSeconds:    s.TimerSeconds,
		ParallelTask:    s.ParallelTask,
		ProTip:          s.ProTip,
		TechniqueIcon:   s.TechniqueIcon,
		IngredientsUsed: s.IngredientsUsed,
		CreatedAt:       s.CreatedAt,
	}
}

// ModelToCard converts a GORM model to a domain workflow card
func ModelToCard(model *WorkflowCardModel) *card.WorkflowCard {
	return card.Restore(card.State{
		ID:              model.ID,
		RecipeID:        model.RecipeID,
		CardNumber:      model.CardNumber,
		Title:           model.Title,
		CardType:        model.CardType,
		HeatLevel:       card.HeatLevel(model.HeatLevel),
		Instructions:    model.Instructions,
		SuccessMarker:   model.SuccessMarker,
		TimerSeconds:    model.TimerSeconds,
		ParallelTask:    model.ParallelTask,
		ProTip:          model.ProTip,
		TechniqueIcon:   model.TechniqueIcon,
		IngredientsUsed: model.IngredientsUsed,
		CreatedAt:       model.CreatedAt,
	})
}
