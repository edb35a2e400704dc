// Package openai provides the OpenAI Responses API generation adapter
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
)

// ProviderName identifies this adapter in configuration and metrics
const ProviderName = "openai"

// Config configures the OpenAI client
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// Client implements outbound.GenerationService using the OpenAI API
type Client struct {
	client    openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewClient creates a new OpenAI client. Retries are disabled: a failed
// call surfaces immediately to the pipeline.
func NewClient(cfg Config, logger *zap.Logger, extra ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	return &Client{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("openai-client"),
	}, nil
}

// Provider returns the provider name
func (c *Client) Provider() string { return ProviderName }

// Model returns the configured model
func (c *Client) Model() string { return c.model }

// Close is a no-op; the SDK holds no long-lived resources
func (c *Client) Close() error { return nil }

// Generate performs a single non-streaming Responses call
func (c *Client) Generate(ctx context.Context, req *generation.Request) (*generation.Response, error) {
	result, err := c.client.Responses.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, classify(err)
	}
	if result.Error.Message != "" {
		return nil, generation.NewUpstreamError(ProviderName, fmt.Errorf("%s: %s", result.Error.Code, result.Error.Message))
	}

	resp := &generation.Response{
		Text:  result.OutputText(),
		Model: string(result.Model),
		Usage: generation.Usage{
			InputTokens:  int(result.Usage.InputTokens),
			OutputTokens: int(result.Usage.OutputTokens),
			TotalTokens:  int(result.Usage.TotalTokens),
		},
	}
	if req.Tool != nil {
		for _, item := range result.Output {
			if item.Type == "function_call" && item.Name == req.Tool.Name {
				resp.ToolArguments = item.Arguments
				break
			}
		}
		if resp.ToolArguments == "" {
			c.logger.Debug("Model answered without calling the tool", zap.String("tool", req.Tool.Name))
		}
	}
	return resp, nil
}

func (c *Client) buildParams(req *generation.Request) responses.ResponseNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertMessages(req.Conversation()),
		},
	}
	if maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(maxTokens))
	}
	if system := req.SystemPrompt(); system != "" {
		params.Instructions = openai.String(system)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	if req.Tool != nil {
		tool := responses.ToolParamOfFunction(req.Tool.Name, ensureObjectType(req.Tool.Parameters), req.Tool.Strict)
		if req.Tool.Description != "" {
			function := tool.OfFunction
			function.Description = openai.String(req.Tool.Description)
			tool.OfFunction = function
		}
		params.Tools = []responses.ToolUnionParam{tool}
		params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
			OfFunctionTool: &responses.ToolChoiceFunctionParam{Name: req.Tool.Name},
		}
	}
	return params
}

func convertMessages(messages []generation.Message) responses.ResponseInputParam {
	result := make(responses.ResponseInputParam, 0, len(messages))
	for _, msg := range messages {
		role := responses.EasyInputMessageRoleUser
		if msg.Role == generation.RoleAssistant {
			role = responses.EasyInputMessageRoleAssistant
		}

		if len(msg.Images) == 0 {
			result = append(result, responses.ResponseInputItemParamOfMessage(msg.Content, role))
			continue
		}

		parts := responses.ResponseInputMessageContentListParam{
			{OfInputText: &responses.ResponseInputTextParam{Text: msg.Content}},
		}
		for _, img := range msg.Images {
			parts = append(parts, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					ImageURL: openai.String(img.DataURL()),
					Detail:   responses.ResponseInputImageDetailAuto,
				},
			})
		}
		result = append(result, responses.ResponseInputItemParamOfMessage(parts, role))
	}
	return result
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return generation.NewRateLimitError(ProviderName, err)
	}
	return generation.NewUpstreamError(ProviderName, err)
}

func ensureObjectType(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{"type": "object"}
	}
	if _, hasType := params["type"]; !hasType {
		params["type"] = "object"
	}
	return params
}
