// Package cards generates and stores the ordered workflow cards of a recipe.
package cards

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/recipeflow/internal/application/structured"
	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	lockPrefix = "cards:"
	tracerName = "github.com/alchemorsel/recipeflow/internal/application/cards"
)

// Config tunes the generation call and the replacement lock
type Config struct {
	Temperature float64
	MaxTokens   int
	LockTTL     time.Duration
}

// Dependencies groups the collaborators of the card service
type Dependencies struct {
	Recipes   outbound.RecipeRepository
	Analyses  outbound.SacredAnalysisRepository
	Cards     outbound.CardRepository
	Generator outbound.GenerationService
	Locks     outbound.LockManager
	Metrics   outbound.PipelineMetrics
	Validate  *validator.Validate
	Logger    *zap.Logger
}

// Service implements inbound.CardService
type Service struct {
	recipes   outbound.RecipeRepository
	analyses  outbound.SacredAnalysisRepository
	cards     outbound.CardRepository
	generator outbound.GenerationService
	locks     outbound.LockManager
	metrics   outbound.PipelineMetrics
	validate  *validator.Validate
	config    Config
	tracer    trace.Tracer
	logger    *zap.Logger
	clock     func() time.Time
}

// NewService creates a new card service
func NewService(deps Dependencies, config Config) inbound.CardService {
	return newService(deps, config, time.Now)
}

func newService(deps Dependencies, config Config, clock func() time.Time) *Service {
	if config.LockTTL <= 0 {
		config.LockTTL = 2 * time.Minute
	}
	return &Service{
		recipes:   deps.Recipes,
		analyses:  deps.Analyses,
		cards:     deps.Cards,
		generator: deps.Generator,
		locks:     deps.Locks,
		metrics:   deps.Metrics,
		validate:  deps.Validate,
		config:    config,
		tracer:    otel.Tracer(tracerName),
		logger:    deps.Logger.Named("card-service"),
		clock:     clock,
	}
}

// Generate produces a fresh card set for a stored recipe and replaces any
// previous set. Nothing is written unless the whole set is valid.
func (s *Service) Generate(ctx context.Context, recipeID uuid.UUID) (result *inbound.GenerateCardsResult, err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "cards.Generate",
		trace.WithAttributes(attribute.String("recipe.id", recipeID.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
		s.metrics.RecordCardGeneration(outbound.OutcomeFor(err), time.Since(started))
	}()

	if recipeID == uuid.Nil {
		return nil, apperrors.NewValidationError("recipe_id is required")
	}
	logger := s.logger.With(zap.String("recipe_id", recipeID.String()))

	r, err := s.loadRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyses.FindByRecipeID(ctx, recipeID)
	switch {
	case errors.Is(err, sacred.ErrAnalysisNotFound):
		logger.Info("No sacred analysis, generating without it")
		analysis = nil
	case err != nil:
		return nil, apperrors.NewDatabaseError("load sacred analysis", err)
	}

	req := buildRequest(r, analysis, s.config.Temperature, s.config.MaxTokens)
	resp, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, structured.ClassifyGenerationError(s.generator.Provider(), err)
	}

	parsed := structured.Decode[CardsPayload](resp.Payload(), s.validate)
	if !parsed.IsValid() {
		logger.Warn("Card output rejected",
			zap.String("reason", parsed.Reason()),
			zap.String("snippet", parsed.Snippet()),
		)
		return nil, apperrors.NewParseError(parsed.Reason(), parsed.Snippet())
	}

	names := ingredientNames(r)
	set, unknown, err := card.NewSet(r.ID(), parsed.Payload().drafts(), names, s.clock())
	if err != nil {
		logger.Warn("Card set rejected", zap.Error(err))
		return nil, apperrors.NewParseError(err.Error(), structured.Snippet(resp.Payload()))
	}
	if len(unknown) > 0 {
		logger.Warn("Dropped ingredient references not in the recipe", zap.Strings("names", unknown))
	}
	if missing := card.UncoveredIngredients(set, names); len(missing) > 0 {
		logger.Info("Recipe ingredients not used on any card", zap.Strings("names", missing))
	}

	if err := s.replace(ctx, r, set); err != nil {
		return nil, err
	}

	for _, event := range r.PullEvents() {
		logger.Debug("Domain event", zap.String("event", event.EventName()))
	}
	logger.Info("Workflow cards generated",
		zap.Int("card_count", len(set)),
		zap.Bool("sacred_aware", analysis != nil),
	)

	return &inbound.GenerateCardsResult{
		RecipeID:    r.ID(),
		CardCount:   len(set),
		SacredAware: analysis != nil,
	}, nil
}

// replace swaps the stored set under the recipe's lock
func (s *Service) replace(ctx context.Context, r *recipe.Recipe, set []*card.WorkflowCard) error {
	key := lockPrefix + r.ID().String()
	lock, err := s.locks.Acquire(ctx, key, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, outbound.ErrLockTimeout) {
			return apperrors.NewResourceLockedError("recipe cards").WithCause(err)
		}
		return apperrors.Wrap(err, "failed to acquire card lock")
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release card lock", zap.String("key", key), zap.Error(err))
		}
	}()

	r.MarkCardsReady(len(set), s.clock())
	if err := s.cards.ReplaceForRecipe(ctx, r, set); err != nil {
		return apperrors.NewDatabaseError("replace workflow cards", err)
	}
	return nil
}

// ListCards returns a recipe's stored cards in order
func (s *Service) ListCards(ctx context.Context, recipeID uuid.UUID) ([]inbound.CardDTO, error) {
	if recipeID == uuid.Nil {
		return nil, apperrors.NewValidationError("recipe_id is required")
	}
	exists, err := s.recipes.Exists(ctx, recipeID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("check recipe existence", err)
	}
	if !exists {
		return nil, apperrors.NewRecipeNotFoundError(recipeID.String())
	}

	set, err := s.cards.FindByRecipeID(ctx, recipeID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list workflow cards", err)
	}

	dtos := make([]inbound.CardDTO, 0, len(set))
	for _, c := range set {
		dtos = append(dtos, toDTO(c))
	}
	return dtos, nil
}

func (s *Service) loadRecipe(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	r, err := s.recipes.FindByID(ctx, id)
	if errors.Is(err, recipe.ErrRecipeNotFound) {
		return nil, apperrors.NewRecipeNotFoundError(id.String())
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("load recipe", err)
	}
	return r, nil
}

func ingredientNames(r *recipe.Recipe) []string {
	names := make([]string, 0, len(r.Ingredients()))
	for _, ing := range r.Ingredients() {
		names = append(names, ing.Name)
	}
	return names
}

func toDTO(c *card.WorkflowCard) inbound.CardDTO {
	used := make([]inbound.IngredientUseDTO, 0, len(c.IngredientsUsed()))
	for _, u := range c.IngredientsUsed() {
		used = append(used, inbound.IngredientUseDTO{Name: u.Name, Qty: u.Qty, Action: u.Action})
	}
	return inbound.CardDTO{
		ID:              c.ID(),
		CardNumber:      c.CardNumber(),
		Title:           c.Title(),
		CardType:        c.CardType(),
		HeatLevel:       string(c.HeatLevel()),
		Instructions:    c.Instructions(),
		SuccessMarker:   c.SuccessMarker(),
		TimerSeconds:    c.TimerSeconds(),
		ParallelTask:    c.ParallelTask(),
		ProTip:          c.ProTip(),
		TechniqueIcon:   c.TechniqueIcon(),
		IngredientsUsed: used,
	}
}
