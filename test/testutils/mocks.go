// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
	"github.com/alchemorsel/recipeflow/internal/domain/upload"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUploadRepository provides a mock implementation of UploadRepository.
// Every successful write is kept so tests can inspect the final state.
type MockUploadRepository struct {
	mock.Mock
	uploads map[uuid.UUID]*upload.Upload
	mu      sync.RWMutex
}

// NewMockUploadRepository creates a new mock upload repository
func NewMockUploadRepository() *MockUploadRepository {
	return &MockUploadRepository{uploads: make(map[uuid.UUID]*upload.Upload)}
}

// Create stores a new upload
func (m *MockUploadRepository) Create(ctx context.Context, u *upload.Upload) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil {
		m.store(u)
	}
	return args.Error(0)
}

// Update stores the upload's current state
func (m *MockUploadRepository) Update(ctx context.Context, u *upload.Upload) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil {
		m.store(u)
	}
	return args.Error(0)
}

// FindByID returns a stored upload
func (m *MockUploadRepository) FindByID(ctx context.Context, id uuid.UUID) (*upload.Upload, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*upload.Upload), args.Error(1)
	}
	return nil, args.Error(1)
}

// Stored returns the last stored snapshot of an upload
func (m *MockUploadRepository) Stored(id uuid.UUID) (upload.State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.uploads[id]
	if !ok {
		return upload.State{}, false
	}
	return u.State(), true
}

// Only returns the single stored upload, failing loudly if there are others
func (m *MockUploadRepository) Only() upload.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.uploads) != 1 {
		panic("expected exactly one stored upload")
	}
	for _, u := range m.uploads {
		return u.State()
	}
	return upload.State{}
}

func (m *MockUploadRepository) store(u *upload.Upload) {
	m.mu.Lock()
	m.uploads[u.ID()] = u
	m.mu.Unlock()
}

// SetupStandardMockBehavior accepts every write
func (m *MockUploadRepository) SetupStandardMockBehavior() {
	m.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("Update", mock.Anything, mock.Anything).Return(nil).Maybe()
}

// MockRecipeRepository provides a mock implementation of RecipeRepository
type MockRecipeRepository struct {
	mock.Mock
	saved    []*recipe.Recipe
	analyses map[uuid.UUID]*sacred.Analysis
	mu       sync.RWMutex
}

// NewMockRecipeRepository creates a new mock recipe repository
func NewMockRecipeRepository() *MockRecipeRepository {
	return &MockRecipeRepository{analyses: make(map[uuid.UUID]*sacred.Analysis)}
}

// SaveExtraction records the recipe and analysis when the expectation succeeds
func (m *MockRecipeRepository) SaveExtraction(ctx context.Context, r *recipe.Recipe, analysis *sacred.Analysis) error {
	args := m.Called(ctx, r, analysis)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.saved = append(m.saved, r)
		if analysis != nil {
			m.analyses[r.ID()] = analysis
		}
		m.mu.Unlock()
	}
	return args.Error(0)
}

// FindByID finds a recipe by ID
func (m *MockRecipeRepository) FindByID(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*recipe.Recipe), args.Error(1)
	}
	return nil, args.Error(1)
}

// Exists reports whether a recipe exists
func (m *MockRecipeRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// Saved returns every recipe written so far
func (m *MockRecipeRepository) Saved() []*recipe.Recipe {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*recipe.Recipe(nil), m.saved...)
}

// SavedAnalysis returns the analysis written with a recipe
func (m *MockRecipeRepository) SavedAnalysis(recipeID uuid.UUID) *sacred.Analysis {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.analyses[recipeID]
}

// MockSacredAnalysisRepository provides a mock implementation of SacredAnalysisRepository
type MockSacredAnalysisRepository struct {
	mock.Mock
}

// FindByRecipeID returns the analysis of a recipe
func (m *MockSacredAnalysisRepository) FindByRecipeID(ctx context.Context, recipeID uuid.UUID) (*sacred.Analysis, error) {
	args := m.Called(ctx, recipeID)
	if v := args.Get(0); v != nil {
		return v.(*sacred.Analysis), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByCuisine returns the analyses of a cuisine
func (m *MockSacredAnalysisRepository) FindByCuisine(ctx context.Context, cuisine string) ([]*sacred.Analysis, error) {
	args := m.Called(ctx, cuisine)
	if v := args.Get(0); v != nil {
		return v.([]*sacred.Analysis), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListCuisines returns every cuisine with analyses
func (m *MockSacredAnalysisRepository) ListCuisines(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockKnowledgeRepository provides a mock implementation of KnowledgeRepository
type MockKnowledgeRepository struct {
	mock.Mock
}

// Upsert stores a knowledge base
func (m *MockKnowledgeRepository) Upsert(ctx context.Context, kb *knowledge.KnowledgeBase) error {
	return m.Called(ctx, kb).Error(0)
}

// FindByCuisine returns the knowledge base of a cuisine
func (m *MockKnowledgeRepository) FindByCuisine(ctx context.Context, cuisine string) (*knowledge.KnowledgeBase, error) {
	args := m.Called(ctx, cuisine)
	if v := args.Get(0); v != nil {
		return v.(*knowledge.KnowledgeBase), args.Error(1)
	}
	return nil, args.Error(1)
}

// Top returns the largest knowledge bases
func (m *MockKnowledgeRepository) Top(ctx context.Context, limit int) ([]*knowledge.KnowledgeBase, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*knowledge.KnowledgeBase), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCardRepository provides a mock implementation of CardRepository
type MockCardRepository struct {
	mock.Mock
}

// ReplaceForRecipe replaces a recipe's card set
func (m *MockCardRepository) ReplaceForRecipe(ctx context.Context, r *recipe.Recipe, cards []*card.WorkflowCard) error {
	return m.Called(ctx, r, cards).Error(0)
}

// FindByRecipeID returns a recipe's cards
func (m *MockCardRepository) FindByRecipeID(ctx context.Context, recipeID uuid.UUID) ([]*card.WorkflowCard, error) {
	args := m.Called(ctx, recipeID)
	if v := args.Get(0); v != nil {
		return v.([]*card.WorkflowCard), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCacheRepository provides a mock implementation of CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

// Get returns a cached value
func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

// Set caches a value
func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

// Delete removes a cached value
func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// Exists reports whether a key is cached
func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockLockManager provides a mock implementation of LockManager
type MockLockManager struct {
	mock.Mock
}

// Acquire takes a lock
func (m *MockLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (outbound.Lock, error) {
	args := m.Called(ctx, key, ttl)
	switch v := args.Get(0).(type) {
	case func(context.Context, string, time.Duration) outbound.Lock:
		return v(ctx, key, ttl), args.Error(1)
	case outbound.Lock:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

// SetupStandardMockBehavior grants every lock with a fresh StubLock
func (m *MockLockManager) SetupStandardMockBehavior() {
	m.On("Acquire", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, key string, _ time.Duration) outbound.Lock {
			return &StubLock{key: key}
		}, nil).Maybe()
}

// StubLock is a held lock that counts releases
type StubLock struct {
	key      string
	mu       sync.Mutex
	released int
}

// NewStubLock creates a stub lock for key
func NewStubLock(key string) *StubLock {
	return &StubLock{key: key}
}

// Key returns the lock key
func (l *StubLock) Key() string { return l.key }

// Release marks the lock released
func (l *StubLock) Release(context.Context) error {
	l.mu.Lock()
	l.released++
	l.mu.Unlock()
	return nil
}

// Released returns how many times Release was called
func (l *StubLock) Released() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

// MockBlobStore provides a mock implementation of BlobStore
type MockBlobStore struct {
	mock.Mock
}

// Put archives data
func (m *MockBlobStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

// Get reads archived data
func (m *MockBlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	args := m.Called(ctx, ref)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockGenerationService provides a mock implementation of GenerationService
type MockGenerationService struct {
	mock.Mock
}

// Generate runs a generation request
func (m *MockGenerationService) Generate(ctx context.Context, req *generation.Request) (*generation.Response, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*generation.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

// Provider names the mock provider
func (m *MockGenerationService) Provider() string { return "mock" }

// MockSourceFetcher provides a mock implementation of SourceFetcher
type MockSourceFetcher struct {
	mock.Mock
}

// FetchPage returns page text
func (m *MockSourceFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// FetchImage returns image data
func (m *MockSourceFetcher) FetchImage(ctx context.Context, url string) (*generation.Image, error) {
	args := m.Called(ctx, url)
	if v := args.Get(0); v != nil {
		return v.(*generation.Image), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockKnowledgeService provides a mock implementation of inbound.KnowledgeService
type MockKnowledgeService struct {
	mock.Mock
}

// BuildContext renders the knowledge context
func (m *MockKnowledgeService) BuildContext(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Learn recomputes a cuisine
func (m *MockKnowledgeService) Learn(ctx context.Context, cuisine string) (*knowledge.KnowledgeBase, error) {
	args := m.Called(ctx, cuisine)
	if v := args.Get(0); v != nil {
		return v.(*knowledge.KnowledgeBase), args.Error(1)
	}
	return nil, args.Error(1)
}

// LearnBestEffort recomputes a cuisine and swallows failures
func (m *MockKnowledgeService) LearnBestEffort(ctx context.Context, cuisine string) {
	m.Called(ctx, cuisine)
}

// LearnAll recomputes every cuisine
func (m *MockKnowledgeService) LearnAll(ctx context.Context, progress func(inbound.LearnProgress)) (*inbound.LearnAllReport, error) {
	args := m.Called(ctx, progress)
	if v := args.Get(0); v != nil {
		return v.(*inbound.LearnAllReport), args.Error(1)
	}
	return nil, args.Error(1)
}

// Get returns a cuisine's knowledge base
func (m *MockKnowledgeService) Get(ctx context.Context, cuisine string) (*knowledge.KnowledgeBase, error) {
	args := m.Called(ctx, cuisine)
	if v := args.Get(0); v != nil {
		return v.(*knowledge.KnowledgeBase), args.Error(1)
	}
	return nil, args.Error(1)
}

// Top returns the largest knowledge bases
func (m *MockKnowledgeService) Top(ctx context.Context, limit int) ([]*knowledge.KnowledgeBase, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*knowledge.KnowledgeBase), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockExtractionService provides a mock implementation of inbound.ExtractionService
type MockExtractionService struct {
	mock.Mock
}

// Extract runs one extraction
func (m *MockExtractionService) Extract(ctx context.Context, cmd inbound.ExtractCommand) (*inbound.ExtractResult, error) {
	args := m.Called(ctx, cmd)
	if v := args.Get(0); v != nil {
		return v.(*inbound.ExtractResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCardService provides a mock implementation of inbound.CardService
type MockCardService struct {
	mock.Mock
}

// Generate produces a recipe's workflow cards
func (m *MockCardService) Generate(ctx context.Context, recipeID uuid.UUID) (*inbound.GenerateCardsResult, error) {
	args := m.Called(ctx, recipeID)
	if v := args.Get(0); v != nil {
		return v.(*inbound.GenerateCardsResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListCards returns a recipe's stored cards
func (m *MockCardService) ListCards(ctx context.Context, recipeID uuid.UUID) ([]inbound.CardDTO, error) {
	args := m.Called(ctx, recipeID)
	if v := args.Get(0); v != nil {
		return v.([]inbound.CardDTO), args.Error(1)
	}
	return nil, args.Error(1)
}

// MetricRecord is one call captured by RecordingMetrics
type MetricRecord struct {
	Stage   string
	Label   string
	Outcome string
}

// RecordingMetrics is a PipelineMetrics that keeps every call
type RecordingMetrics struct {
	mu      sync.Mutex
	records []MetricRecord
}

var _ outbound.PipelineMetrics = (*RecordingMetrics)(nil)

// NewRecordingMetrics creates an empty recorder
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{}
}

// RecordExtraction implements outbound.PipelineMetrics
func (r *RecordingMetrics) RecordExtraction(sourceKind, outcome string, _ time.Duration) {
	r.add(MetricRecord{Stage: "extraction", Label: sourceKind, Outcome: outcome})
}

// RecordLearning implements outbound.PipelineMetrics
func (r *RecordingMetrics) RecordLearning(cuisine, outcome string) {
	r.add(MetricRecord{Stage: "learning", Label: cuisine, Outcome: outcome})
}

// RecordCardGeneration implements outbound.PipelineMetrics
func (r *RecordingMetrics) RecordCardGeneration(outcome string, _ time.Duration) {
	r.add(MetricRecord{Stage: "cards", Outcome: outcome})
}

// RecordGeneration implements outbound.PipelineMetrics
func (r *RecordingMetrics) RecordGeneration(provider, _ string, outcome string, _ time.Duration, _ generation.Usage) {
	r.add(MetricRecord{Stage: "generation", Label: provider, Outcome: outcome})
}

// Records returns a copy of everything recorded
func (r *RecordingMetrics) Records() []MetricRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MetricRecord(nil), r.records...)
}

// Outcomes returns the outcomes recorded for a stage, in call order
func (r *RecordingMetrics) Outcomes(stage string) []string {
	var outcomes []string
	for _, rec := range r.Records() {
		if rec.Stage == stage {
			outcomes = append(outcomes, rec.Outcome)
		}
	}
	return outcomes
}

func (r *RecordingMetrics) add(rec MetricRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}
