package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/security"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxKnowledgeLimit = 100

// PipelineHandlers serves the extraction, card and knowledge endpoints
type PipelineHandlers struct {
	extraction   inbound.ExtractionService
	cards        inbound.CardService
	knowledge    inbound.KnowledgeService
	validate     *validator.Validate
	maxBodyBytes int64
	defaultTopN  int
	logger       *zap.Logger
}

// PipelineConfig bounds request handling
type PipelineConfig struct {
	MaxBodyBytes int64
	DefaultTopN  int
}

// NewPipelineHandlers creates the pipeline handlers
func NewPipelineHandlers(
	extraction inbound.ExtractionService,
	cards inbound.CardService,
	knowledge inbound.KnowledgeService,
	validate *validator.Validate,
	cfg PipelineConfig,
	logger *zap.Logger,
) *PipelineHandlers {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = 10
	}
	return &PipelineHandlers{
		extraction:   extraction,
		cards:        cards,
		knowledge:    knowledge,
		validate:     validate,
		maxBodyBytes: cfg.MaxBodyBytes,
		defaultTopN:  cfg.DefaultTopN,
		logger:       logger.Named("http"),
	}
}

// ExtractRecipe handles POST /recipe-extract
func (h *PipelineHandlers) ExtractRecipe(w http.ResponseWriter, r *http.Request) {
	var cmd inbound.ExtractCommand
	if err := decodeJSON(w, r, h.maxBodyBytes, &cmd); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.extraction.Extract(r.Context(), cmd)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, result)
}

// GenerateCards handles POST /recipe-generate-cards
func (h *PipelineHandlers) GenerateCards(w http.ResponseWriter, r *http.Request) {
	var cmd inbound.GenerateCardsCommand
	if err := decodeJSON(w, r, h.maxBodyBytes, &cmd); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(cmd); err != nil {
		WriteError(w, r, h.logger, security.ToValidationError(err))
		return
	}

	recipeID, err := uuid.Parse(cmd.RecipeID)
	if err != nil {
		WriteError(w, r, h.logger, apperrors.NewValidationError("recipe_id must be a valid UUID"))
		return
	}

	result, err := h.cards.Generate(r.Context(), recipeID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, result)
}

// ListCards handles GET /recipes/{id}/cards
func (h *PipelineHandlers) ListCards(w http.ResponseWriter, r *http.Request) {
	recipeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, h.logger, apperrors.NewValidationError("recipe id must be a valid UUID"))
		return
	}

	cards, err := h.cards.ListCards(r.Context(), recipeID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"recipe_id": recipeID,
		"cards":     cards,
	})
}

// ListKnowledge handles GET /knowledge?limit=n
func (h *PipelineHandlers) ListKnowledge(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultTopN
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxKnowledgeLimit {
			WriteError(w, r, h.logger, apperrors.NewValidationError(
				"limit must be an integer between 1 and "+strconv.Itoa(maxKnowledgeLimit)))
			return
		}
		limit = n
	}

	bases, err := h.knowledge.Top(r.Context(), limit)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"knowledge_bases": bases,
		"count":           len(bases),
	})
}

// GetKnowledge handles GET /knowledge/{cuisine}
func (h *PipelineHandlers) GetKnowledge(w http.ResponseWriter, r *http.Request) {
	cuisine := chi.URLParam(r, "cuisine")
	if unescaped, err := url.PathUnescape(cuisine); err == nil {
		cuisine = unescaped
	}
	cuisine = strings.TrimSpace(cuisine)
	if cuisine == "" {
		WriteError(w, r, h.logger, apperrors.NewValidationError("cuisine is required"))
		return
	}

	kb, err := h.knowledge.Get(r.Context(), cuisine)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, kb)
}
