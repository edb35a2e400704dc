package generation_test

import (
	"errors"
	"testing"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/stretchr/testify/assert"
)

func TestRequest(t *testing.T) {
	req := &generation.Request{
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Content: "rules"},
			{Role: generation.RoleUser, Content: "source"},
			{Role: generation.RoleSystem, Content: "context"},
		},
	}

	assert.Equal(t, "rules\n\ncontext", req.SystemPrompt())
	assert.Len(t, req.Conversation(), 1)
	assert.NoError(t, req.Validate())

	req.Tool = &generation.Tool{}
	assert.ErrorIs(t, req.Validate(), generation.ErrToolNameRequired)

	empty := &generation.Request{Messages: []generation.Message{{Role: generation.RoleSystem, Content: "only rules"}}}
	assert.ErrorIs(t, empty.Validate(), generation.ErrEmptyConversation)
}

func TestResponsePayload(t *testing.T) {
	assert.Equal(t, `{"a":1}`, (&generation.Response{Text: "ignored", ToolArguments: `{"a":1}`}).Payload())
	assert.Equal(t, "plain", (&generation.Response{Text: "plain"}).Payload())
}

func TestProviderError(t *testing.T) {
	cause := errors.New("status 429")
	err := generation.NewRateLimitError("openai", cause)

	assert.ErrorIs(t, err, generation.ErrRateLimited)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, generation.ErrUpstream)
	assert.Contains(t, err.Error(), "openai")

	var providerErr *generation.ProviderError
	assert.True(t, errors.As(generation.NewUpstreamError("ollama", cause), &providerErr))
	assert.Equal(t, "ollama", providerErr.Provider)
}

func TestImageDataURL(t *testing.T) {
	img := generation.Image{MIMEType: "image/png", Data: []byte("png")}
	assert.Equal(t, "data:image/png;base64,cG5n", img.DataURL())
}
