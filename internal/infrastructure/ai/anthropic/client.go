// Package anthropic provides the Anthropic Messages API generation adapter
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// ProviderName identifies this adapter in configuration and metrics
const ProviderName = "anthropic"

// Messages API requires max_tokens on every call
const defaultMaxTokens = 4096

// Config configures the Anthropic client
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// Client implements outbound.GenerationService using the Anthropic API
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewClient creates a new Anthropic client with retries disabled
func NewClient(cfg Config, logger *zap.Logger, extra ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model is required")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
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
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("anthropic-client"),
	}, nil
}

// Provider returns the provider name
func (c *Client) Provider() string { return ProviderName }

// Model returns the configured model
func (c *Client) Model() string { return c.model }

// Close is a no-op; the SDK holds no long-lived resources
func (c *Client) Close() error { return nil }

// Generate performs a non-streaming Messages call
func (c *Client) Generate(ctx context.Context, req *generation.Request) (*generation.Response, error) {
	msg, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, classify(err)
	}

	resp := &generation.Response{
		Model: string(msg.Model),
		Usage: generation.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			if req.Tool == nil || b.Name != req.Tool.Name {
				continue
			}
			args, err := b.Input.MarshalJSON()
			if err != nil {
				return nil, generation.NewUpstreamError(ProviderName, err)
			}
			resp.ToolArguments = string(args)
		}
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		c.logger.Warn("Generation stopped at max tokens", zap.Int("max_tokens", c.maxTokens))
	}
	return resp, nil
}

func (c *Client) buildParams(req *generation.Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  convertMessages(req.Conversation()),
	}
	if system := req.SystemPrompt(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	if req.Tool != nil {
		params.Tools = []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        req.Tool.Name,
				Description: anthropic.String(req.Tool.Description),
				InputSchema: buildSchema(req.Tool.Parameters),
			},
		}}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.Tool.Name},
		}
	}
	return params
}

func convertMessages(messages []generation.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == generation.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}

		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Images)+1)
		for _, img := range msg.Images {
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, img.Base64()))
		}
		blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		result = append(result, anthropic.NewUserMessage(blocks...))
	}
	return result
}

func buildSchema(params map[string]any) anthropic.ToolInputSchemaParam {
	return anthropic.ToolInputSchemaParam{
		Type:       "object",
		Properties: params["properties"],
		Required:   requiredFields(params),
	}
}

func requiredFields(params map[string]any) []string {
	switch req := params["required"].(type) {
	case []string:
		return req
	case []any:
		result := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return generation.NewRateLimitError(ProviderName, err)
	}
	return generation.NewUpstreamError(ProviderName, err)
}
