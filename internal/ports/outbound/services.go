package outbound

import (
	"context"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
)

// GenerationService is the text and image generation capability. Failures
// wrap generation.ErrUpstream or generation.ErrRateLimited.
type GenerationService interface {
	Generate(ctx context.Context, req *generation.Request) (*generation.Response, error)
	Provider() string
}

// SourceFetcher retrieves remote source material referenced by an upload
type SourceFetcher interface {
	// FetchPage downloads an HTML page and reduces it to visible text
	FetchPage(ctx context.Context, url string) (string, error)
	// FetchImage downloads an image, downscaled for inlining
	FetchImage(ctx context.Context, url string) (*generation.Image, error)
}

// Outcome labels used when recording pipeline metrics
const (
	OutcomeSuccess     = "success"
	OutcomeValidation  = "validation_error"
	OutcomeUpstream    = "upstream_error"
	OutcomeRateLimited = "rate_limited"
	OutcomeParse       = "parse_error"
	OutcomeSourceFetch = "source_fetch_error"
	OutcomePersistence = "persistence_error"
	OutcomeLocked      = "locked"
	OutcomeSkipped     = "skipped"
	OutcomeNotFound    = "not_found"
	OutcomeInternal    = "internal_error"
)

// OutcomeFor maps an error onto a metrics outcome label
func OutcomeFor(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch apperrors.GetCode(err) {
	case apperrors.CodeValidationFailed, apperrors.CodeBadRequest:
		return OutcomeValidation
	case apperrors.CodeUpstreamGeneration:
		return OutcomeUpstream
	case apperrors.CodeRateLimited:
		return OutcomeRateLimited
	case apperrors.CodeParseFailed:
		return OutcomeParse
	case apperrors.CodeSourceFetchFailed:
		return OutcomeSourceFetch
	case apperrors.CodeDatabaseError:
		return OutcomePersistence
	case apperrors.CodeResourceLocked:
		return OutcomeLocked
	case apperrors.CodeRecipeNotFound, apperrors.CodeNotFound:
		return OutcomeNotFound
	default:
		return OutcomeInternal
	}
}

// PipelineMetrics records stage outcomes
type PipelineMetrics interface {
	RecordExtraction(sourceKind, outcome string, duration time.Duration)
	RecordLearning(cuisine, outcome string)
	RecordCardGeneration(outcome string, duration time.Duration)
	RecordGeneration(provider, model, outcome string, duration time.Duration, usage generation.Usage)
}
