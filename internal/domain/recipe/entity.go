// Package recipe contains the constrained recipe aggregate produced by the
// extraction stage: at most twelve non-staple ingredients, one primary
// vessel and a total time capped at sixty minutes.
package recipe

import (
	"strings"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/shared"
	"github.com/google/uuid"
)

// Recipe is the aggregate root for an extracted recipe and its ingredients
type Recipe struct {
	id       uuid.UUID
	uploadID uuid.UUID

	title       string
	slug        string
	hook        string
	description string
	cuisine     string
	vessel      string

	totalTimeMinutes int
	prepTimeMinutes  int
	cookTimeMinutes  int
	serves           int

	difficulty     int
	spiceLevel     int
	adventureLevel int

	dietaryTags []string
	seasonTags  []string
	tips        []string
	sourceURL   string

	ingredients []Ingredient

	pipelineStatus PipelineStatus
	createdAt      time.Time
	updatedAt      time.Time

	events shared.EventRecorder
}

// NewRecipe builds a normalized recipe from extracted details. The title
// falls back to a dated placeholder, the slug gets a unique suffix and the
// total time is clamped. The caller is responsible for trimming the
// ingredient list with CapNonStaples beforehand.
func NewRecipe(uploadID uuid.UUID, details Details, ingredients []Ingredient, now time.Time) (*Recipe, error) {
	if len(ingredients) == 0 {
		return nil, ErrNoIngredients
	}
	if CountNonStaples(ingredients) > MaxNonStapleCount {
		return nil, ErrTooManyNonStaples
	}

	title := strings.TrimSpace(details.Title)
	if title == "" {
		title = FallbackTitle(now)
	}
	cuisine := strings.TrimSpace(details.Cuisine)
	if cuisine == "" {
		cuisine = DefaultCuisine
	}
	serves := details.Serves
	if serves <= 0 {
		serves = DefaultServes
	}

	r := &Recipe{
		id:               uuid.New(),
		uploadID:         uploadID,
		title:            title,
		slug:             NewSlug(title, now),
		hook:             strings.TrimSpace(details.Hook),
		description:      strings.TrimSpace(details.Description),
		cuisine:          cuisine,
		vessel:           strings.TrimSpace(details.Vessel),
		totalTimeMinutes: ClampTotalTime(details.TotalTimeMinutes, details.PrepTimeMinutes, details.CookTimeMinutes),
		prepTimeMinutes:  ClampPartTime(details.PrepTimeMinutes),
		cookTimeMinutes:  ClampPartTime(details.CookTimeMinutes),
		serves:           serves,
		difficulty:       difficultyScale.clamp(details.Difficulty),
		spiceLevel:       spiceScale.clamp(details.SpiceLevel),
		adventureLevel:   adventureScale.clamp(details.AdventureLevel),
		dietaryTags:      cleanTags(details.DietaryTags),
		seasonTags:       cleanTags(details.SeasonTags),
		tips:             cleanTags(details.Tips),
		sourceURL:        strings.TrimSpace(details.SourceURL),
		pipelineStatus:   PipelineStatusExtracted,
		createdAt:        now,
		updatedAt:        now,
	}

	r.ingredients = make([]Ingredient, 0, len(ingredients))
	for i, ing := range ingredients {
		if err := ing.Validate(); err != nil {
			return nil, err
		}
		ing.ID = uuid.New()
		ing.RecipeID = r.id
		ing.Name = strings.TrimSpace(ing.Name)
		ing.SortOrder = i
		r.ingredients = append(r.ingredients, ing)
	}

	r.events.Record(RecipeExtractedEvent{
		RecipeID:    r.id,
		UploadID:    uploadID,
		Cuisine:     cuisine,
		ExtractedAt: now,
	})

	return r, nil
}

// State is the persisted form of a recipe
type State struct {
	ID               uuid.UUID
	UploadID         uuid.UUID
	Title            string
	Slug             string
	Hook             string
	Description      string
	Cuisine          string
	Vessel           string
	TotalTimeMinutes int
	PrepTimeMinutes  int
	CookTimeMinutes  int
	Serves           int
	Difficulty       int
	SpiceLevel       int
	AdventureLevel   int
	DietaryTags      []string
	SeasonTags       []string
	Tips             []string
	SourceURL        string
	Ingredients      []Ingredient
	PipelineStatus   PipelineStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Restore rebuilds a recipe from storage without raising events
func Restore(s State) (*Recipe, error) {
	if s.Slug == "" {
		return nil, ErrSlugRequired
	}
	if !s.PipelineStatus.IsValid() {
		return nil, ErrInvalidPipelineStep
	}
	return &Recipe{
		id:               s.ID,
		uploadID:         s.UploadID,
		title:            s.Title,
		slug:             s.Slug,
		hook:             s.Hook,
		description:      s.Description,
		cuisine:          s.Cuisine,
		vessel:           s.Vessel,
		totalTimeMinutes: min(s.TotalTimeMinutes, MaxTotalMinutes),
		prepTimeMinutes:  s.PrepTimeMinutes,
		cookTimeMinutes:  s.CookTimeMinutes,
		serves:           s.Serves,
		difficulty:       s.Difficulty,
		spiceLevel:       s.SpiceLevel,
		adventureLevel:   s.AdventureLevel,
		dietaryTags:      s.DietaryTags,
		seasonTags:       s.SeasonTags,
		tips:             s.Tips,
		sourceURL:        s.SourceURL,
		ingredients:      s.Ingredients,
		pipelineStatus:   s.PipelineStatus,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}, nil
}

// State returns the persisted form of the recipe
func (r *Recipe) State() State {
	return State{
		ID:               r.id,
		UploadID:         r.uploadID,
		Title:            r.title,
		Slug:             r.slug,
		Hook:             r.hook,
		Description:      r.description,
		Cuisine:          r.cuisine,
		Vessel:           r.vessel,
		TotalTimeMinutes: r.totalTimeMinutes,
		PrepTimeMinutes:  r.prepTimeMinutes,
		CookTimeMinutes:  r.cookTimeMinutes,
		Serves:           r.serves,
		Difficulty:       r.difficulty,
		SpiceLevel:       r.spiceLevel,
		AdventureLevel:   r.adventureLevel,
		DietaryTags:      r.dietaryTags,
		SeasonTags:       r.seasonTags,
		Tips:             r.tips,
		SourceURL:        r.sourceURL,
		Ingredients:      r.ingredients,
		PipelineStatus:   r.pipelineStatus,
		CreatedAt:        r.createdAt,
		UpdatedAt:        r.updatedAt,
	}
}

// RegenerateSlug assigns a fresh slug after a uniqueness conflict
func (r *Recipe) RegenerateSlug(now time.Time) {
	r.slug = NewSlug(r.title, now)
	r.updatedAt = now
}

// MarkCardsReady advances the pipeline once a card set has been stored.
// Regenerating cards for a recipe that is already cards_ready is allowed.
func (r *Recipe) MarkCardsReady(cardCount int, now time.Time) {
	r.pipelineStatus = PipelineStatusCardsReady
	r.updatedAt = now
	r.events.Record(RecipeCardsReadyEvent{
		RecipeID:  r.id,
		CardCount: cardCount,
		ReadyAt:   now,
	})
}

// SacredIngredientNames returns the names of ingredients flagged sacred
func (r *Recipe) SacredIngredientNames() []string {
	var names []string
	for _, ing := range r.ingredients {
		if ing.IsSacred {
			names = append(names, ing.Name)
		}
	}
	return names
}

// PullEvents returns and clears pending domain events
func (r *Recipe) PullEvents() []shared.DomainEvent {
	return r.events.PullEvents()
}

func (r *Recipe) ID() uuid.UUID { return r.id }
func (r *Recipe) UploadID() uuid.UUID { return r.uploadID }
func (r *Recipe) Title() string { return r.title }
func (r *Recipe) Slug() string { return r.slug }
func (r *Recipe) Hook() string { return r.hook }
func (r *Recipe) Description() string { return r.description }
func (r *Recipe) Cuisine() string { return r.cuisine }
func (r *Recipe) Vessel() string { return r.vessel }
func (r *Recipe) TotalTimeMinutes() int { return r.totalTimeMinutes }
func (r *Recipe) PrepTimeMinutes() int { return r.prepTimeMinutes }
func (r *Recipe) CookTimeMinutes() int { return r.cookTimeMinutes }
func (r *Recipe) Serves() int { return r.serves }
func (r *Recipe) Difficulty() int { return r.difficulty }
func (r *Recipe) SpiceLevel() int { return r.spiceLevel }
func (r *Recipe) AdventureLevel() int { return r.adventureLevel }
func (r *Recipe) DietaryTags() []string { return r.dietaryTags }
func (r *Recipe) SeasonTags() []string { return r.seasonTags }
func (r *Recipe) Tips() []string { return r.tips }
func (r *Recipe) SourceURL() string { return r.sourceURL }
func (r *Recipe) Ingredients() []Ingredient { return r.ingredients }
func (r *Recipe) PipelineStatus() PipelineStatus { return r.pipelineStatus }
func (r *Recipe) CreatedAt() time.Time { return r.createdAt }
func (r *Recipe) UpdatedAt() time.Time { return r.updatedAt }
