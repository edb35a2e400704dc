// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/domain/upload"
	"github.com/google/uuid"
)

// UploadRepository persists uploads
type UploadRepository interface {
	Create(ctx context.Context, u *upload.Upload) error
	Update(ctx context.Context, u *upload.Upload) error
	FindByID(ctx context.Context, id uuid.UUID) (*upload.Upload, error)
}

// RecipeRepository persists recipes together with their ingredients
type RecipeRepository interface {
	// SaveExtraction writes the recipe, its ingredients and the optional
	// sacred analysis in one transaction. A slug collision is reported as
	// recipe.ErrDuplicateSlug and leaves nothing behind.
	SaveExtraction(ctx context.Context, r *recipe.Recipe, analysis *sacred.Analysis) error
	FindByID(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// SacredAnalysisRepository reads sacred analyses
type SacredAnalysisRepository interface {
	FindByRecipeID(ctx context.Context, recipeID uuid.UUID) (*sacred.Analysis, error)
	// FindByCuisine returns every analysis for the cuisine key, oldest first
	FindByCuisine(ctx context.Context, cuisine string) ([]*sacred.Analysis, error)
	ListCuisines(ctx context.Context) ([]string, error)
}

// KnowledgeRepository persists learned per-cuisine aggregates
type KnowledgeRepository interface {
	// Upsert replaces the row for kb.Cuisine or creates it
	Upsert(ctx context.Context, kb *knowledge.KnowledgeBase) error
	FindByCuisine(ctx context.Context, cuisine string) (*knowledge.KnowledgeBase, error)
	// Top returns up to limit rows ordered by recipe count, then cuisine
	Top(ctx context.Context, limit int) ([]*knowledge.KnowledgeBase, error)
}

// CardRepository persists workflow card sets
type CardRepository interface {
	// ReplaceForRecipe deletes the recipe's cards, inserts the new set and
	// stores the recipe's pipeline status in a single transaction
	ReplaceForRecipe(ctx context.Context, r *recipe.Recipe, cards []*card.WorkflowCard) error
	FindByRecipeID(ctx context.Context, recipeID uuid.UUID) ([]*card.WorkflowCard, error)
}

// ErrCacheMiss is returned by CacheRepository.Get for absent or expired keys
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

var (
	// ErrLockTimeout is returned when a lock could not be taken within the wait budget
	ErrLockTimeout = errors.New("timed out waiting for lock")
	// ErrLockNotHeld is returned when releasing a lock that expired or was taken over
	ErrLockNotHeld = errors.New("lock is not held")
)

// Lock is a held lock
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// LockManager serializes work on a key across goroutines and, when backed by
// a shared store, across instances
type LockManager interface {
	// Acquire blocks until the lock is taken, the wait budget is spent or
	// ctx is done. ttl bounds how long an abandoned lock survives.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// BlobStore archives raw source material
type BlobStore interface {
	// Put stores data under a content derived key and returns a reference
	// such as "s3://bucket/key" or "file:///path"
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}
