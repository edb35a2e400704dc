package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/security"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/alchemorsel/recipeflow/pkg/healthcheck"
	"github.com/alchemorsel/recipeflow/test/testutils"
	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type requestRecorder struct {
	requests []recordedRequest
}

func (r *requestRecorder) ObserveHTTPRequest(method, route string, status int, _ time.Duration, _ int) {
	r.requests = append(r.requests, recordedRequest{method: method, route: route, status: status})
}

type ServerTestSuite struct {
	suite.Suite
	cfg        *config.Config
	extraction *testutils.MockExtractionService
	cards      *testutils.MockCardService
	knowledge  *testutils.MockKnowledgeService
	tokens     *security.TokenService
	observer   *requestRecorder
	srv        *httptest.Server
	assertHTTP *testutils.HTTPAssertions
}

func (s *ServerTestSuite) SetupTest() {
	cfg, err := config.Load("")
	s.Require().NoError(err)
	cfg.Auth.JWTSecret = "test-secret-key-for-testing-only"
	cfg.RateLimit.Enable = false
	cfg.Server.EnableCompression = false
	s.cfg = cfg

	s.extraction = new(testutils.MockExtractionService)
	s.cards = new(testutils.MockCardService)
	s.knowledge = new(testutils.MockKnowledgeService)
	s.observer = &requestRecorder{}
	s.assertHTTP = testutils.NewHTTPAssertions(s.T())
	s.start()
}

func (s *ServerTestSuite) start() {
	logger := zaptest.NewLogger(s.T())
	s.tokens = security.NewTokenService(s.cfg.Auth, logger)

	health := healthcheck.New("test", logger)
	health.Register("static", healthcheck.NewCustomChecker("static", healthyCheck))

	server := NewServer(s.cfg, Dependencies{
		Pipeline: handlers.NewPipelineHandlers(s.extraction, s.cards, s.knowledge, security.NewValidator(),
			handlers.PipelineConfig{MaxBodyBytes: s.cfg.Server.MaxBodyBytes, DefaultTopN: 10}, logger),
		Health:   health,
		Tokens:   s.tokens,
		Observer: s.observer,
	}, logger)
	s.srv = httptest.NewServer(server.Router())
	s.T().Cleanup(func() {
		s.srv.Close()
		_ = server.Shutdown(context.Background())
	})
}

func (s *ServerTestSuite) TearDownTest() {
	s.extraction.AssertExpectations(s.T())
	s.cards.AssertExpectations(s.T())
	s.knowledge.AssertExpectations(s.T())
}

func (s *ServerTestSuite) token(role string) string {
	token, err := s.tokens.Mint("ops@example.com", role, time.Minute)
	s.Require().NoError(err)
	return token
}

func (s *ServerTestSuite) do(method, path, token string, body interface{}) *http.Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *ServerTestSuite) TestHealth() {
	resp := s.do(http.MethodGet, "/health", "", nil)
	s.assertHTTP.StatusCode(resp, http.StatusOK)

	var body map[string]interface{}
	s.assertHTTP.JSONResponse(resp, &body)
	s.Equal("healthy", body["status"])
	s.Empty(s.observer.requests, "health probes are not measured")
}

func (s *ServerTestSuite) TestExtract_Authorization() {
	cmd := inbound.ExtractCommand{UploadType: "text", RawText: "Pad kra pao"}

	resp := s.do(http.MethodPost, "/recipe-extract", "", cmd)
	s.assertHTTP.StatusCode(resp, http.StatusUnauthorized)
	s.assertHTTP.ErrorResponse(resp, apperrors.CodeUnauthorized)

	resp = s.do(http.MethodPost, "/recipe-extract", "not.a.token", cmd)
	s.assertHTTP.StatusCode(resp, http.StatusUnauthorized)

	resp = s.do(http.MethodPost, "/recipe-extract", s.token("viewer"), cmd)
	s.assertHTTP.StatusCode(resp, http.StatusForbidden)
	envelope := s.assertHTTP.ErrorResponse(resp, apperrors.CodeForbidden)
	s.NotEmpty(envelope.Error.RequestID)
	s.assertHTTP.SecurityHeaders(resp)
}

func (s *ServerTestSuite) TestExtract_Success() {
	cmd := inbound.ExtractCommand{UploadType: "text", RawText: "Pad kra pao"}
	result := &inbound.ExtractResult{
		RecipeID: uuid.New(),
		UploadID: uuid.New(),
		SacredAnalysis: &inbound.SacredSummaryDTO{
			Hero:        "holy basil",
			Quality:     0.9,
			Confidence:  0.8,
			SacredCount: 3,
			Adaptations: []string{"Removed long beans"},
		},
	}
	s.extraction.On("Extract", mock.Anything, cmd).Return(result, nil).Once()

	resp := s.do(http.MethodPost, "/recipe-extract", s.token("operator"), cmd)
	s.assertHTTP.StatusCode(resp, http.StatusOK)

	var body map[string]interface{}
	s.assertHTTP.JSONResponse(resp, &body)
	s.Equal(result.RecipeID.String(), body["recipe_id"])
	s.Equal("holy basil", body["sacred_analysis"].(map[string]interface{})["hero"])

	s.Require().Len(s.observer.requests, 1)
	s.Equal(recordedRequest{method: http.MethodPost, route: "/recipe-extract", status: http.StatusOK}, s.observer.requests[0])
}

func (s *ServerTestSuite) TestExtract_ErrorMapping() {
	tests := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{name: "Validation", err: apperrors.NewValidationError("no content"), status: http.StatusBadRequest, code: apperrors.CodeValidationFailed},
		{name: "RateLimited", err: apperrors.NewRateLimitedError("openai", nil), status: http.StatusTooManyRequests, code: apperrors.CodeRateLimited},
		{name: "Upstream", err: apperrors.NewUpstreamGenerationError("openai", nil), status: http.StatusBadGateway, code: apperrors.CodeUpstreamGeneration},
		{name: "Parse", err: apperrors.NewParseError("missing title", "{}"), status: http.StatusBadGateway, code: apperrors.CodeParseFailed},
		{name: "Persistence", err: apperrors.NewDatabaseError("save recipe", nil), status: http.StatusInternalServerError, code: apperrors.CodeDatabaseError},
		{name: "Locked", err: apperrors.NewResourceLockedError("knowledge base thai"), status: http.StatusConflict, code: apperrors.CodeResourceLocked},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			cmd := inbound.ExtractCommand{UploadType: "text", RawText: tt.name}
			s.extraction.On("Extract", mock.Anything, cmd).Return(nil, tt.err).Once()

			resp := s.do(http.MethodPost, "/recipe-extract", s.token("admin"), cmd)
			s.assertHTTP.StatusCode(resp, tt.status)
			s.assertHTTP.ErrorResponse(resp, tt.code)
		})
	}
}

func (s *ServerTestSuite) TestExtract_RequiresJSON() {
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/recipe-extract", bytes.NewBufferString("upload_type=text"))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token("operator"))

	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.assertHTTP.StatusCode(resp, http.StatusBadRequest)
	s.assertHTTP.ErrorResponse(resp, apperrors.CodeValidationFailed)
}

func (s *ServerTestSuite) TestExtract_MalformedBody() {
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/recipe-extract", bytes.NewBufferString("{not json"))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token("operator"))

	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.assertHTTP.StatusCode(resp, http.StatusBadRequest)
	s.assertHTTP.ErrorResponse(resp, apperrors.CodeValidationFailed)
}

func (s *ServerTestSuite) TestGenerateCards() {
	recipeID := uuid.New()
	s.cards.On("Generate", mock.Anything, recipeID).
		Return(&inbound.GenerateCardsResult{RecipeID: recipeID, CardCount: 5, SacredAware: true}, nil).Once()

	resp := s.do(http.MethodPost, "/recipe-generate-cards", s.token("operator"),
		inbound.GenerateCardsCommand{RecipeID: recipeID.String()})
	s.assertHTTP.StatusCode(resp, http.StatusOK)

	var result inbound.GenerateCardsResult
	s.assertHTTP.JSONResponse(resp, &result)
	s.Equal(5, result.CardCount)
	s.True(result.SacredAware)
}

func (s *ServerTestSuite) TestGenerateCards_Validation() {
	resp := s.do(http.MethodPost, "/recipe-generate-cards", s.token("operator"),
		inbound.GenerateCardsCommand{RecipeID: "42"})
	s.assertHTTP.StatusCode(resp, http.StatusBadRequest)
	envelope := s.assertHTTP.ErrorResponse(resp, apperrors.CodeValidationFailed)
	s.Equal("recipe_id must be a valid UUID", envelope.Error.Details)
}

func (s *ServerTestSuite) TestGenerateCards_RecipeNotFound() {
	recipeID := uuid.New()
	s.cards.On("Generate", mock.Anything, recipeID).
		Return(nil, apperrors.NewRecipeNotFoundError(recipeID.String())).Once()

	resp := s.do(http.MethodPost, "/recipe-generate-cards", s.token("operator"),
		inbound.GenerateCardsCommand{RecipeID: recipeID.String()})
	s.assertHTTP.StatusCode(resp, http.StatusNotFound)
	s.assertHTTP.ErrorResponse(resp, apperrors.CodeRecipeNotFound)
}

func (s *ServerTestSuite) TestListCards() {
	recipeID := uuid.New()
	s.cards.On("ListCards", mock.Anything, recipeID).Return([]inbound.CardDTO{
		{ID: uuid.New(), CardNumber: 1, Title: "Prep", HeatLevel: "off", Instructions: []string{"Chop"}, SuccessMarker: "All chopped"},
	}, nil).Once()

	resp := s.do(http.MethodGet, "/recipes/"+recipeID.String()+"/cards", "", nil)
	s.assertHTTP.StatusCode(resp, http.StatusOK)

	var body struct {
		RecipeID uuid.UUID         `json:"recipe_id"`
		Cards    []inbound.CardDTO `json:"cards"`
	}
	s.assertHTTP.JSONResponse(resp, &body)
	s.Equal(recipeID, body.RecipeID)
	s.Require().Len(body.Cards, 1)
	s.Equal("Prep", body.Cards[0].Title)

	resp = s.do(http.MethodGet, "/recipes/not-a-uuid/cards", "", nil)
	s.assertHTTP.StatusCode(resp, http.StatusBadRequest)
}

func (s *ServerTestSuite) TestKnowledge() {
	thai := &knowledge.KnowledgeBase{Cuisine: "Thai", RecipeCount: 4, CommonSacredTechniques: []string{"pound paste"}}
	s.knowledge.On("Top", mock.Anything, 10).Return([]*knowledge.KnowledgeBase{thai}, nil).Once()
	s.knowledge.On("Top", mock.Anything, 2).Return([]*knowledge.KnowledgeBase{thai}, nil).Once()
	s.knowledge.On("Get", mock.Anything, "Middle Eastern").
		Return(nil, apperrors.NewNotFoundError("knowledge base")).Once()

	token := s.token("operator")

	resp := s.do(http.MethodGet, "/knowledge", token, nil)
	s.assertHTTP.StatusCode(resp, http.StatusOK)
	var list struct {
		KnowledgeBases []knowledge.KnowledgeBase `json:"knowledge_bases"`
		Count          int                       `json:"count"`
	}
	s.assertHTTP.JSONResponse(resp, &list)
	s.Equal(1, list.Count)
	s.Equal("Thai", list.KnowledgeBases[0].Cuisine)

	s.assertHTTP.StatusCode(s.do(http.MethodGet, "/knowledge?limit=2", token, nil), http.StatusOK)
	s.assertHTTP.StatusCode(s.do(http.MethodGet, "/knowledge?limit=0", token, nil), http.StatusBadRequest)
	s.assertHTTP.StatusCode(s.do(http.MethodGet, "/knowledge", "", nil), http.StatusUnauthorized)

	resp = s.do(http.MethodGet, "/knowledge/Middle%20Eastern", token, nil)
	s.assertHTTP.StatusCode(resp, http.StatusNotFound)
	s.assertHTTP.ErrorResponse(resp, apperrors.CodeNotFound)
}

func (s *ServerTestSuite) TestUnknownRoute() {
	resp := s.do(http.MethodGet, "/recipes", "", nil)
	s.assertHTTP.StatusCode(resp, http.StatusNotFound)
	s.assertHTTP.ErrorResponse(resp, apperrors.CodeNotFound)
}

func (s *ServerTestSuite) TestRateLimit() {
	s.srv.Close()
	s.cfg.RateLimit.Enable = true
	s.cfg.RateLimit.RequestsPerMin = 1
	s.cfg.RateLimit.BurstSize = 1
	s.start()

	s.assertHTTP.StatusCode(s.do(http.MethodGet, "/health", "", nil), http.StatusOK)

	resp := s.do(http.MethodGet, "/health", "", nil)
	s.assertHTTP.StatusCode(resp, http.StatusTooManyRequests)
	s.NotEmpty(resp.Header.Get("Retry-After"))
	s.assertHTTP.ErrorResponse(resp, apperrors.CodeTooManyRequests)
}

func (s *ServerTestSuite) TestBrotliCompression() {
	s.srv.Close()
	s.cfg.Server.EnableCompression = true
	s.start()

	recipeID := uuid.New()
	s.cards.On("ListCards", mock.Anything, recipeID).Return([]inbound.CardDTO{}, nil).Once()

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/recipes/"+recipeID.String()+"/cards", nil)
	s.Require().NoError(err)
	req.Header.Set("Accept-Encoding", "br")

	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal("br", resp.Header.Get("Content-Encoding"))
	decoded, err := io.ReadAll(brotli.NewReader(resp.Body))
	s.Require().NoError(err)
	s.Contains(string(decoded), recipeID.String())
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func healthyCheck(context.Context) (healthcheck.Status, string, interface{}) {
	return healthcheck.StatusHealthy, "", nil
}

func TestNewServer_MetricsListener(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Monitoring.EnableMetrics = true
	cfg.Monitoring.MetricsPort = 9191

	logger := zaptest.NewLogger(t)
	server := NewServer(cfg, Dependencies{
		Pipeline: handlers.NewPipelineHandlers(nil, nil, nil, security.NewValidator(), handlers.PipelineConfig{}, logger),
		Health:   healthcheck.New("test", logger),
		Tokens:   security.NewTokenService(cfg.Auth, logger),
		Metrics:  http.NotFoundHandler(),
	}, logger)

	require.NotNil(t, server.metricsServer)
	require.Contains(t, server.metricsServer.Addr, "9191")
	require.NoError(t, server.Shutdown(context.Background()))
}
