package gemini

import (
	"errors"
	"net/http"
	"testing"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToSchema(t *testing.T) {
	schema := ToSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"risk":  map[string]any{"type": "string", "enum": []string{"low", "high"}},
			"steps": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
		},
		"required": []string{"title"},
	})

	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"title"}, schema.Required)
	assert.Equal(t, genai.TypeString, schema.Properties["title"].Type)
	assert.Equal(t, []string{"low", "high"}, schema.Properties["risk"].Enum)
	assert.Equal(t, genai.TypeArray, schema.Properties["steps"].Type)
	assert.Equal(t, genai.TypeInteger, schema.Properties["steps"].Items.Type)
}

func TestConfigure(t *testing.T) {
	temperature := 0.3
	model := &genai.GenerativeModel{}
	configure(model, &generation.Request{
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Content: "rules"},
			{Role: generation.RoleUser, Content: "recipe"},
		},
		Temperature: &temperature,
		Tool:        &generation.Tool{Name: "record_recipe", Parameters: map[string]any{"type": "object"}},
	}, 1024)

	assert.Equal(t, "application/json", model.ResponseMIMEType)
	require.NotNil(t, model.ResponseSchema)
	require.NotNil(t, model.MaxOutputTokens)
	assert.Equal(t, int32(1024), *model.MaxOutputTokens)
	require.NotNil(t, model.Temperature)
	assert.InDelta(t, 0.3, *model.Temperature, 0.0001)
	require.NotNil(t, model.SystemInstruction)
	assert.Equal(t, genai.Text("rules"), model.SystemInstruction.Parts[0])
}

func TestConvertMessages(t *testing.T) {
	contents := convertMessages([]generation.Message{
		{Role: generation.RoleUser, Content: "photo", Images: []generation.Image{{MIMEType: "image/png", Data: []byte("png")}}},
		{Role: generation.RoleAssistant, Content: "ok"},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, genai.Blob{MIMEType: "image/png", Data: []byte("png")}, contents[0].Parts[0])
	assert.Equal(t, "model", contents[1].Role)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(status.Error(codes.ResourceExhausted, "quota")), generation.ErrRateLimited)
	assert.ErrorIs(t, classify(&googleapi.Error{Code: http.StatusTooManyRequests}), generation.ErrRateLimited)
	assert.ErrorIs(t, classify(status.Error(codes.Internal, "boom")), generation.ErrUpstream)
	assert.ErrorIs(t, classify(errors.New("dial")), generation.ErrUpstream)
}
