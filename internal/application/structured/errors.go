package structured

import (
	"errors"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
)

// ClassifyGenerationError maps a capability failure onto the error taxonomy.
// Rate limits keep their own code; everything else is an upstream failure.
func ClassifyGenerationError(provider string, err error) error {
	if errors.Is(err, generation.ErrRateLimited) {
		return apperrors.NewRateLimitedError(provider, err)
	}
	return apperrors.NewUpstreamGenerationError(provider, err)
}
