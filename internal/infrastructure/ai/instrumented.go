package ai

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/alchemorsel/recipeflow/internal/infrastructure/ai"

// InstrumentedService records latency, token usage and a span for every
// generation call
type InstrumentedService struct {
	next    Provider
	metrics outbound.PipelineMetrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewInstrumentedService decorates a provider. metrics may be nil.
func NewInstrumentedService(next Provider, metrics outbound.PipelineMetrics, logger *zap.Logger) *InstrumentedService {
	return &InstrumentedService{
		next:    next,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
		logger:  logger.Named("generation"),
	}
}

var _ outbound.GenerationService = (*InstrumentedService)(nil)

// Provider returns the wrapped provider name
func (s *InstrumentedService) Provider() string {
	return s.next.Provider()
}

// Model returns the wrapped provider model
func (s *InstrumentedService) Model() string {
	return s.next.Model()
}

// Close releases the wrapped provider
func (s *InstrumentedService) Close() error {
	return s.next.Close()
}

// Generate validates the request and forwards it to the provider
func (s *InstrumentedService) Generate(ctx context.Context, req *generation.Request) (*generation.Response, error) {
	provider, model := s.next.Provider(), s.next.Model()

	ctx, span := s.tracer.Start(ctx, "generation.Generate", trace.WithAttributes(
		attribute.String("gen_ai.system", provider),
		attribute.String("gen_ai.request.model", model),
		attribute.Bool("recipeflow.structured", req.Tool != nil),
		attribute.Int("recipeflow.images", imageCount(req)),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, generation.NewUpstreamError(provider, err)
	}

	start := time.Now()
	resp, err := s.next.Generate(ctx, req)
	duration := time.Since(start)

	outcome := outbound.OutcomeSuccess
	var usage generation.Usage
	switch {
	case errors.Is(err, generation.ErrRateLimited):
		outcome = outbound.OutcomeRateLimited
	case err != nil:
		outcome = outbound.OutcomeUpstream
	default:
		usage = resp.Usage
		if resp.Model != "" {
			model = resp.Model
		}
	}

	if s.metrics != nil {
		s.metrics.RecordGeneration(provider, model, outcome, duration, usage)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.Warn("Generation failed",
			zap.String("provider", provider),
			zap.String("model", model),
			zap.String("outcome", outcome),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", model),
		attribute.Int("gen_ai.usage.input_tokens", usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", usage.OutputTokens),
	)
	s.logger.Info("Generation completed",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Bool("structured", resp.ToolArguments != ""),
	)
	return resp, nil
}

func imageCount(req *generation.Request) int {
	n := 0
	for _, msg := range req.Messages {
		n += len(msg.Images)
	}
	return n
}
