package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const functionCallResponse = `{
  "id": "resp_1",
  "object": "response",
  "created_at": 1700000000,
  "model": "gpt-4o-mini-2024-07-18",
  "status": "completed",
  "output": [
    {
      "type": "function_call",
      "id": "fc_1",
      "call_id": "call_1",
      "name": "record_recipe",
      "arguments": "{\"title\":\"Dal\"}",
      "status": "completed"
    }
  ],
  "usage": {"input_tokens": 120, "output_tokens": 30, "total_tokens": 150}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1/"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestGenerate_ToolCall(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(functionCallResponse))
	})

	resp, err := client.Generate(context.Background(), &generation.Request{
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Content: "rules"},
			{Role: generation.RoleUser, Content: "recipe", Images: []generation.Image{{MIMEType: "image/jpeg", Data: []byte("jpg")}}},
		},
		MaxTokens: 256,
		Tool: &generation.Tool{
			Name:        "record_recipe",
			Description: "Record it.",
			Parameters:  map[string]any{"properties": map[string]any{}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"title":"Dal"}`, resp.ToolArguments)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Model)
	assert.Equal(t, generation.Usage{InputTokens: 120, OutputTokens: 30, TotalTokens: 150}, resp.Usage)

	assert.Equal(t, "rules", body["instructions"])
	assert.Equal(t, float64(256), body["max_output_tokens"])
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	assert.Equal(t, "record_recipe", tools[0].(map[string]any)["name"])
	assert.Contains(t, string(mustJSON(t, body["input"])), "data:image/jpeg;base64,anBn")
}

func TestGenerate_RateLimited(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
	})

	_, err := client.Generate(context.Background(), &generation.Request{
		Messages: []generation.Message{{Role: generation.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, generation.ErrRateLimited)
	assert.Equal(t, 1, calls, "no retries")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{Model: "gpt-4o-mini"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
