package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/alchemorsel/recipeflow/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubProvider struct {
	testutils.MockGenerationService
}

func (p *stubProvider) Model() string { return "stub-model" }
func (p *stubProvider) Close() error  { return nil }

func userRequest() *generation.Request {
	return &generation.Request{Messages: []generation.Message{
		{Role: generation.RoleSystem, Content: "rules"},
		{Role: generation.RoleUser, Content: "recipe text"},
	}}
}

func TestInstrumentedService_RecordsOutcomes(t *testing.T) {
	provider := &stubProvider{}
	metrics := testutils.NewRecordingMetrics()
	svc := NewInstrumentedService(provider, metrics, zaptest.NewLogger(t))
	ctx := context.Background()

	provider.On("Generate", mock.Anything, mock.Anything).
		Return(&generation.Response{Text: "ok", Usage: generation.Usage{InputTokens: 3, OutputTokens: 2}}, nil).Once()
	provider.On("Generate", mock.Anything, mock.Anything).
		Return(nil, generation.NewRateLimitError("mock", errors.New("429"))).Once()
	provider.On("Generate", mock.Anything, mock.Anything).
		Return(nil, generation.NewUpstreamError("mock", errors.New("500"))).Once()

	resp, err := svc.Generate(ctx, userRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	_, err = svc.Generate(ctx, userRequest())
	assert.ErrorIs(t, err, generation.ErrRateLimited)

	_, err = svc.Generate(ctx, userRequest())
	assert.ErrorIs(t, err, generation.ErrUpstream)

	assert.Equal(t, []string{
		outbound.OutcomeSuccess,
		outbound.OutcomeRateLimited,
		outbound.OutcomeUpstream,
	}, metrics.Outcomes("generation"))
	assert.Equal(t, "mock", svc.Provider())
	assert.Equal(t, "stub-model", svc.Model())
	provider.AssertExpectations(t)
}

func TestInstrumentedService_RejectsInvalidRequest(t *testing.T) {
	provider := &stubProvider{}
	svc := NewInstrumentedService(provider, nil, zaptest.NewLogger(t))

	_, err := svc.Generate(context.Background(), &generation.Request{})
	assert.ErrorIs(t, err, generation.ErrEmptyConversation)
	assert.ErrorIs(t, err, generation.ErrUpstream)
	provider.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}
