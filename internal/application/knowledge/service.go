// Package knowledge implements the knowledge context builder and the
// per-cuisine learner.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// ContextVersionKey holds the generation the learner bumps after each write
	ContextVersionKey = "knowledge:context:version"
	// ContextCachePrefix prefixes the rendered context block of one generation
	ContextCachePrefix = "knowledge:context:v1:"

	lockPrefix = "learn:"
	maxTopN    = 100
	tracerName = "github.com/alchemorsel/recipeflow/internal/application/knowledge"
)

// Config tunes context building and learning
type Config struct {
	ContextTopN      int
	ContextCacheTTL  time.Duration
	LockTTL          time.Duration
	LearnConcurrency int
}

// Service implements inbound.KnowledgeService
type Service struct {
	analyses outbound.SacredAnalysisRepository
	bases    outbound.KnowledgeRepository
	cache    outbound.CacheRepository
	locks    outbound.LockManager
	metrics  outbound.PipelineMetrics
	config   Config
	tracer   trace.Tracer
	logger   *zap.Logger
	clock    func() time.Time
}

// NewService creates a new knowledge service
func NewService(
	analyses outbound.SacredAnalysisRepository,
	bases outbound.KnowledgeRepository,
	cache outbound.CacheRepository,
	locks outbound.LockManager,
	metrics outbound.PipelineMetrics,
	config Config,
	logger *zap.Logger,
) inbound.KnowledgeService {
	return newService(analyses, bases, cache, locks, metrics, config, logger, time.Now)
}

func newService(
	analyses outbound.SacredAnalysisRepository,
	bases outbound.KnowledgeRepository,
	cache outbound.CacheRepository,
	locks outbound.LockManager,
	metrics outbound.PipelineMetrics,
	config Config,
	logger *zap.Logger,
	clock func() time.Time,
) *Service {
	if config.ContextTopN <= 0 {
		config.ContextTopN = 10
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Second
	}
	if config.LearnConcurrency <= 0 {
		config.LearnConcurrency = 4
	}
	return &Service{
		analyses: analyses,
		bases:    bases,
		cache:    cache,
		locks:    locks,
		metrics:  metrics,
		config:   config,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.Named("knowledge-service"),
		clock:    clock,
	}
}

// BuildContext renders the top cuisines for the extraction prompt. The block
// is cached under the current context generation, so a render that raced a
// learner lands under a generation nobody reads anymore.
func (s *Service) BuildContext(ctx context.Context) (string, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.BuildContext")
	defer span.End()

	cacheKey := ""
	if s.config.ContextCacheTTL > 0 {
		cacheKey = s.contextCacheKey(ctx)
	}
	if cacheKey != "" {
		cached, err := s.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return string(cached), nil
		case !errors.Is(err, outbound.ErrCacheMiss):
			s.logger.Warn("Context cache read failed", zap.Error(err))
		}
	}

	bases, err := s.bases.Top(ctx, s.config.ContextTopN)
	if err != nil {
		return "", apperrors.NewDatabaseError("load knowledge bases", err)
	}
	knowledge.SortForContext(bases)
	rendered := knowledge.RenderContext(bases)
	span.SetAttributes(attribute.Int("knowledge.cuisines", len(bases)))

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, []byte(rendered), s.config.ContextCacheTTL); err != nil {
			s.logger.Warn("Context cache write failed", zap.Error(err))
		}
	}
	return rendered, nil
}

// contextCacheKey returns the key for the current generation, or "" when the
// generation cannot be read and caching should be skipped
func (s *Service) contextCacheKey(ctx context.Context) string {
	version, err := s.cache.Get(ctx, ContextVersionKey)
	switch {
	case errors.Is(err, outbound.ErrCacheMiss):
		return ContextCachePrefix + "0"
	case err != nil:
		s.logger.Warn("Context version read failed", zap.Error(err))
		return ""
	default:
		return ContextCachePrefix + string(version)
	}
}

// Learn recomputes a cuisine's knowledge base from all of its analyses.
// Fewer than two analyses is reported as knowledge.ErrInsufficientData and
// leaves the stored base untouched. A recompute that matches the stored
// aggregate is not written, so last_learned_at only moves when content does.
func (s *Service) Learn(ctx context.Context, cuisine string) (kb *knowledge.KnowledgeBase, err error) {
	key := sacred.CuisineKey(cuisine)
	ctx, span := s.tracer.Start(ctx, "knowledge.Learn", trace.WithAttributes(attribute.String("cuisine", key)))
	defer func() {
		outcome := outbound.OutcomeFor(err)
		if errors.Is(err, knowledge.ErrInsufficientData) {
			outcome = outbound.OutcomeSkipped
		} else if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordLearning(key, outcome)
		span.End()
	}()

	lock, err := s.locks.Acquire(ctx, lockPrefix+key, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, outbound.ErrLockTimeout) {
			return nil, apperrors.NewResourceLockedError("knowledge base " + key).WithCause(err)
		}
		return nil, apperrors.Wrap(err, "failed to acquire learner lock")
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.logger.Warn("Failed to release learner lock", zap.String("cuisine", key), zap.Error(releaseErr))
		}
	}()

	analyses, err := s.analyses.FindByCuisine(ctx, key)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load sacred analyses", err)
	}

	kb, err = knowledge.Recompute(key, analyses, s.clock().UTC())
	if err != nil {
		return nil, fmt.Errorf("learn %s: %w", key, err)
	}

	stored, err := s.bases.FindByCuisine(ctx, key)
	switch {
	case err == nil && stored.SameAggregate(kb):
		s.logger.Debug("Knowledge base unchanged", zap.String("cuisine", key))
		return stored, nil
	case err != nil && !errors.Is(err, knowledge.ErrNotFound):
		return nil, apperrors.NewDatabaseError("find knowledge base", err)
	}

	if err := s.bases.Upsert(ctx, kb); err != nil {
		return nil, apperrors.NewDatabaseError("upsert knowledge base", err)
	}
	s.invalidateContext(ctx)

	s.logger.Info("Knowledge base learned",
		zap.String("cuisine", key),
		zap.Int("recipe_count", kb.RecipeCount),
		zap.Int("sacred_ingredients", len(kb.CommonSacredIngredients)),
		zap.Float64("avg_quality", kb.AvgQualityScore),
	)
	return kb, nil
}

// LearnBestEffort runs Learn and only logs failures
func (s *Service) LearnBestEffort(ctx context.Context, cuisine string) {
	_, err := s.Learn(ctx, cuisine)
	switch {
	case err == nil:
	case errors.Is(err, knowledge.ErrInsufficientData):
		s.logger.Debug("Not enough analyses to learn yet", zap.String("cuisine", cuisine))
	default:
		s.logger.Warn("Knowledge learning failed", zap.String("cuisine", cuisine), zap.Error(err))
	}
}

// LearnAll recomputes every cuisine with analyses, a bounded number at a time
func (s *Service) LearnAll(ctx context.Context, progress func(inbound.LearnProgress)) (*inbound.LearnAllReport, error) {
	cuisines, err := s.analyses.ListCuisines(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list cuisines", err)
	}

	report := &inbound.LearnAllReport{
		Learned: []string{},
		Skipped: []string{},
		Failed:  make(map[string]string),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.LearnConcurrency)
	for _, cuisine := range cuisines {
		cuisine := cuisine
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := s.Learn(gctx, cuisine)

			mu.Lock()
			switch {
			case err == nil:
				report.Learned = append(report.Learned, cuisine)
			case errors.Is(err, knowledge.ErrInsufficientData):
				report.Skipped = append(report.Skipped, cuisine)
			default:
				report.Failed[cuisine] = err.Error()
			}
			if progress != nil {
				progress(inbound.LearnProgress{Cuisine: cuisine, Err: err, Total: len(cuisines)})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(report.Learned)
	sort.Strings(report.Skipped)
	s.logger.Info("Relearned all cuisines",
		zap.Int("learned", len(report.Learned)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// Get returns one cuisine's knowledge base
func (s *Service) Get(ctx context.Context, cuisine string) (*knowledge.KnowledgeBase, error) {
	key := sacred.CuisineKey(cuisine)
	kb, err := s.bases.FindByCuisine(ctx, key)
	if errors.Is(err, knowledge.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("knowledge base").WithMetadata("cuisine", key)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("find knowledge base", err)
	}
	return kb, nil
}

// Top returns the largest knowledge bases, at most limit of them
func (s *Service) Top(ctx context.Context, limit int) ([]*knowledge.KnowledgeBase, error) {
	if limit <= 0 {
		limit = s.config.ContextTopN
	}
	limit = min(limit, maxTopN)

	bases, err := s.bases.Top(ctx, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list knowledge bases", err)
	}
	knowledge.SortForContext(bases)
	return bases, nil
}

func (s *Service) invalidateContext(ctx context.Context) {
	if s.config.ContextCacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, ContextVersionKey, []byte(uuid.NewString()), 0); err != nil {
		s.logger.Warn("Context cache invalidation failed", zap.Error(err))
	}
}
