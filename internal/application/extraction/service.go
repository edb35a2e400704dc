// Package extraction turns raw recipe sources into constrained recipes with
// a sacred analysis, persists them and feeds the knowledge learner.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/recipeflow/internal/application/structured"
	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/upload"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/alchemorsel/recipeflow/internal/application/extraction"

// Config tunes the generation call
type Config struct {
	Temperature float64
	MaxTokens   int
}

// Dependencies groups the collaborators of the extraction service
type Dependencies struct {
	Uploads   outbound.UploadRepository
	Recipes   outbound.RecipeRepository
	Generator outbound.GenerationService
	Fetcher   outbound.SourceFetcher
	Blobs     outbound.BlobStore
	Knowledge inbound.KnowledgeService
	Metrics   outbound.PipelineMetrics
	Validate  *validator.Validate
	Logger    *zap.Logger
}

// Service implements inbound.ExtractionService
type Service struct {
	uploads   outbound.UploadRepository
	recipes   outbound.RecipeRepository
	generator outbound.GenerationService
	fetcher   outbound.SourceFetcher
	blobs     outbound.BlobStore
	knowledge inbound.KnowledgeService
	metrics   outbound.PipelineMetrics
	validate  *validator.Validate
	config    Config
	tracer    trace.Tracer
	logger    *zap.Logger
	clock     func() time.Time
}

// NewService creates a new extraction service
func NewService(deps Dependencies, config Config) inbound.ExtractionService {
	return newService(deps, config, time.Now)
}

func newService(deps Dependencies, config Config, clock func() time.Time) *Service {
	return &Service{
		uploads:   deps.Uploads,
		recipes:   deps.Recipes,
		generator: deps.Generator,
		fetcher:   deps.Fetcher,
		blobs:     deps.Blobs,
		knowledge: deps.Knowledge,
		metrics:   deps.Metrics,
		validate:  deps.Validate,
		config:    config,
		tracer:    otel.Tracer(tracerName),
		logger:    deps.Logger.Named("extraction-service"),
		clock:     clock,
	}
}

// source is the resolved material handed to the generation call
type source struct {
	kind   upload.SourceKind
	url    string
	text   string
	images []generation.Image
}

// Extract runs one source through the extraction pipeline
func (s *Service) Extract(ctx context.Context, cmd inbound.ExtractCommand) (result *inbound.ExtractResult, err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "extraction.Extract",
		trace.WithAttributes(attribute.String("upload.type", cmd.UploadType)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
		s.metrics.RecordExtraction(cmd.UploadType, outbound.OutcomeFor(err), time.Since(started))
	}()

	if err := s.validateCommand(cmd); err != nil {
		return nil, err
	}

	u, err := upload.NewUpload(upload.SourceKind(cmd.UploadType), s.clock())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.uploads.Create(ctx, u); err != nil {
		return nil, apperrors.NewDatabaseError("create upload", err)
	}
	span.SetAttributes(attribute.String("upload.id", u.ID().String()))

	logger := s.logger.With(
		zap.String("upload_id", u.ID().String()),
		zap.String("upload_type", cmd.UploadType),
	)
	logger.Info("Starting extraction")

	result, err = s.run(ctx, u, cmd, logger)
	if err != nil {
		s.failUpload(ctx, u, err, logger)
		return nil, err
	}
	return result, nil
}

func (s *Service) run(ctx context.Context, u *upload.Upload, cmd inbound.ExtractCommand, logger *zap.Logger) (*inbound.ExtractResult, error) {
	src, err := s.resolveSource(ctx, u.SourceKind(), cmd)
	if err != nil {
		return nil, err
	}
	s.archive(ctx, u, src, logger)

	knowledgeContext, err := s.knowledge.BuildContext(ctx)
	if err != nil {
		logger.Warn("Knowledge context unavailable, continuing without it", zap.Error(err))
		knowledgeContext = knowledge.NoPriorKnowledgeMarker
	}

	req := buildRequest(knowledgeContext, src, s.config.Temperature, s.config.MaxTokens)
	resp, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, structured.ClassifyGenerationError(s.generator.Provider(), err)
	}
	logger.Debug("Generation finished",
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)

	parsed := structured.Decode[RecipePayload](resp.Payload(), s.validate)
	if !parsed.IsValid() {
		logger.Warn("Generation output rejected",
			zap.String("reason", parsed.Reason()),
			zap.String("snippet", parsed.Snippet()),
		)
		return nil, apperrors.NewParseError(parsed.Reason(), parsed.Snippet())
	}

	out, err := normalize(parsed.Payload(), u.ID(), src.url, s.clock())
	if err != nil {
		return nil, apperrors.NewParseError(err.Error(), structured.Snippet(resp.Payload()))
	}
	if len(out.dropped) > 0 {
		logger.Info("Trimmed ingredient list to the non-staple limit", zap.Strings("dropped", out.dropped))
	}

	if err := s.save(ctx, out, logger); err != nil {
		return nil, err
	}

	if err := u.Complete(out.recipe.ID(), s.clock()); err != nil {
		return nil, apperrors.Wrap(err, "failed to complete upload")
	}
	if err := s.uploads.Update(ctx, u); err != nil {
		return nil, apperrors.NewDatabaseError("complete upload", err)
	}

	for _, event := range out.recipe.PullEvents() {
		logger.Debug("Domain event", zap.String("event", event.EventName()))
	}
	logger.Info("Recipe extracted",
		zap.String("recipe_id", out.recipe.ID().String()),
		zap.String("slug", out.recipe.Slug()),
		zap.String("cuisine", out.recipe.Cuisine()),
		zap.Int("ingredients", len(out.recipe.Ingredients())),
	)

	if out.analysis != nil {
		s.knowledge.LearnBestEffort(ctx, out.analysis.Cuisine())
	}

	return toResult(u, out), nil
}

func (s *Service) validateCommand(cmd inbound.ExtractCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	hasText := strings.TrimSpace(cmd.RawText) != ""
	var ok bool
	switch upload.SourceKind(cmd.UploadType) {
	case upload.SourceKindText, upload.SourceKindPDF:
		ok = hasText
	case upload.SourceKindURL:
		ok = hasText || cmd.SourceURL != ""
	case upload.SourceKindImage:
		ok = hasText || cmd.FileURL != ""
	}
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("upload type %q has no usable content", cmd.UploadType))
	}
	return nil
}

// resolveSource fetches remote material when the command only references it
func (s *Service) resolveSource(ctx context.Context, kind upload.SourceKind, cmd inbound.ExtractCommand) (source, error) {
	src := source{kind: kind, url: cmd.SourceURL, text: strings.TrimSpace(cmd.RawText)}
	if src.text != "" {
		return src, nil
	}

	switch kind {
	case upload.SourceKindURL:
		text, err := s.fetcher.FetchPage(ctx, cmd.SourceURL)
		if err != nil {
			return source{}, apperrors.NewSourceFetchError(cmd.SourceURL, err)
		}
		if strings.TrimSpace(text) == "" {
			return source{}, apperrors.NewSourceFetchError(cmd.SourceURL, errors.New("page has no readable text"))
		}
		src.text = text
	case upload.SourceKindImage:
		img, err := s.fetcher.FetchImage(ctx, cmd.FileURL)
		if err != nil {
			return source{}, apperrors.NewSourceFetchError(cmd.FileURL, err)
		}
		src.images = []generation.Image{*img}
	}
	return src, nil
}

// archive stores the resolved source. Failures are logged and the upload
// simply has no raw content reference.
func (s *Service) archive(ctx context.Context, u *upload.Upload, src source, logger *zap.Logger) {
	data, contentType := []byte(src.text), "text/plain; charset=utf-8"
	if len(src.images) > 0 {
		data, contentType = src.images[0].Data, src.images[0].MIMEType
	}
	if len(data) == 0 {
		return
	}

	ref, err := s.blobs.Put(ctx, data, contentType)
	if err != nil {
		logger.Warn("Failed to archive raw source", zap.Error(err))
		return
	}
	if err := u.AttachRawContent(ref); err != nil {
		logger.Warn("Failed to attach raw source", zap.Error(err))
		return
	}
	if err := s.uploads.Update(ctx, u); err != nil {
		logger.Warn("Failed to record raw source reference", zap.Error(err))
	}
}

// save writes the extraction, regenerating the slug once on a collision
func (s *Service) save(ctx context.Context, out *normalized, logger *zap.Logger) error {
	err := s.recipes.SaveExtraction(ctx, out.recipe, out.analysis)
	if errors.Is(err, recipe.ErrDuplicateSlug) {
		logger.Warn("Slug collision, retrying with a new slug", zap.String("slug", out.recipe.Slug()))
		out.recipe.RegenerateSlug(s.clock())
		err = s.recipes.SaveExtraction(ctx, out.recipe, out.analysis)
	}
	if err != nil {
		return apperrors.NewDatabaseError("save extracted recipe", err)
	}
	return nil
}

func (s *Service) failUpload(ctx context.Context, u *upload.Upload, cause error, logger *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	if err := u.Fail(diagnostic(cause), s.clock()); err != nil {
		logger.Warn("Upload already terminal", zap.Error(err))
		return
	}
	if err := s.uploads.Update(ctx, u); err != nil {
		logger.Error("Failed to mark upload failed", zap.Error(err))
		return
	}
	logger.Warn("Extraction failed", zap.Error(cause))
}

// diagnostic renders an error as the upload's failure message
func diagnostic(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	msg := appErr.Message
	if appErr.Details != "" {
		msg += ": " + appErr.Details
	}
	if appErr.Cause != nil {
		msg += ": " + appErr.Cause.Error()
	}
	if snippet, ok := appErr.Metadata["snippet"].(string); ok && snippet != "" {
		msg += " | output: " + snippet
	}
	return msg
}

func toResult(u *upload.Upload, out *normalized) *inbound.ExtractResult {
	result := &inbound.ExtractResult{
		RecipeID: out.recipe.ID(),
		UploadID: u.ID(),
	}
	if a := out.analysis; a != nil {
		adaptations := append([]string{}, a.AdaptationsMade()...)
		result.SacredAnalysis = &inbound.SacredSummaryDTO{
			Hero:        a.HeroIngredient(),
			Quality:     a.QualityScore(),
			Confidence:  a.Confidence(),
			SacredCount: len(a.SacredIngredients()),
			Adaptations: adaptations,
		}
	}
	return result
}
