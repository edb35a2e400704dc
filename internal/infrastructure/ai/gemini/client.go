// Package gemini provides the Google Gemini generation adapter
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ProviderName identifies this adapter in configuration and metrics
const ProviderName = "gemini"

// Config configures the Gemini client
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// Client implements outbound.GenerationService using the Gemini API.
// Structured output uses a JSON response MIME type with a schema rather than
// function calling.
type Client struct {
	client    *genai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger, extra ...option.ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini model is required")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, extra...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("gemini-client"),
	}, nil
}

// Provider returns the provider name
func (c *Client) Provider() string { return ProviderName }

// Model returns the configured model
func (c *Client) Model() string { return c.model }

// Close releases the underlying connection
func (c *Client) Close() error { return c.client.Close() }

// Generate sends the conversation as a chat whose last message is the prompt
func (c *Client) Generate(ctx context.Context, req *generation.Request) (*generation.Response, error) {
	model := c.client.GenerativeModel(c.model)
	configure(model, req, c.maxTokens)

	contents := convertMessages(req.Conversation())
	if len(contents) == 0 {
		return nil, generation.NewUpstreamError(ProviderName, generation.ErrEmptyConversation)
	}
	last := contents[len(contents)-1]

	session := model.StartChat()
	session.History = contents[:len(contents)-1]

	result, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, classify(err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, generation.NewUpstreamError(ProviderName, errors.New("empty response"))
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	resp := &generation.Response{Text: text.String(), Model: c.model}
	if req.Tool != nil {
		resp.ToolArguments = resp.Text
	}
	if usage := result.UsageMetadata; usage != nil {
		resp.Usage = generation.Usage{
			InputTokens:  int(usage.PromptTokenCount),
			OutputTokens: int(usage.CandidatesTokenCount),
			TotalTokens:  int(usage.TotalTokenCount),
		}
	}
	return resp, nil
}

func configure(model *genai.GenerativeModel, req *generation.Request, defaultMaxTokens int) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	if req.Temperature != nil {
		model.SetTemperature(float32(*req.Temperature))
	}

	system := req.SystemPrompt()
	if req.Tool != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = ToSchema(req.Tool.Parameters)
		if req.Tool.Description != "" {
			system = strings.TrimSpace(system + "\n\n" + req.Tool.Description)
		}
	}
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
}

func convertMessages(messages []generation.Message) []*genai.Content {
	result := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == generation.RoleAssistant {
			role = "model"
		}

		parts := make([]genai.Part, 0, len(msg.Images)+1)
		for _, img := range msg.Images {
			parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
		}
		parts = append(parts, genai.Text(msg.Content))
		result = append(result, &genai.Content{Role: role, Parts: parts})
	}
	return result
}

// ToSchema converts a JSON schema document into the Gemini schema subset
func ToSchema(doc map[string]any) *genai.Schema {
	if doc == nil {
		return nil
	}

	schema := &genai.Schema{}
	switch doc["type"] {
	case "string":
		schema.Type = genai.TypeString
	case "integer":
		schema.Type = genai.TypeInteger
	case "number":
		schema.Type = genai.TypeNumber
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
	default:
		schema.Type = genai.TypeObject
	}

	if desc, ok := doc["description"].(string); ok {
		schema.Description = desc
	}
	schema.Enum = stringList(doc["enum"])
	schema.Required = stringList(doc["required"])

	if items, ok := doc["items"].(map[string]any); ok {
		schema.Items = ToSchema(items)
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if p, ok := prop.(map[string]any); ok {
				schema.Properties[name] = ToSchema(p)
			}
		}
	}
	return schema
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			result = append(result, fmt.Sprint(item))
		}
		return result
	default:
		return nil
	}
}

func classify(err error) error {
	if status.Code(err) == codes.ResourceExhausted {
		return generation.NewRateLimitError(ProviderName, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return generation.NewRateLimitError(ProviderName, err)
	}
	return generation.NewUpstreamError(ProviderName, err)
}
