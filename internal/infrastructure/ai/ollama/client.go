// Package ollama provides Ollama integration for local generation
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ProviderName identifies this adapter in configuration and metrics
const ProviderName = "ollama"

// Config configures the Ollama client
type Config struct {
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client implements outbound.GenerationService using the Ollama chat API
type Client struct {
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
	logger    *zap.Logger
}

// NewClient creates a new Ollama client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return NewClientWithHTTP(cfg, client, logger)
}

// NewClientWithHTTP creates a client around an existing http.Client
func NewClientWithHTTP(cfg Config, client *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    client,
		logger:    logger.Named("ollama-client"),
	}
}

// Ollama API structures
type ChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ChatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   any                    `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ChatResponse struct {
	Model           string      `json:"model"`
	Message         ChatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	EvalDuration    int64       `json:"eval_duration,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Provider returns the provider name
func (c *Client) Provider() string { return ProviderName }

// Model returns the configured model
func (c *Client) Model() string { return c.model }

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// HealthCheck verifies the Ollama service is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// Generate performs a non-streaming chat completion. Structured requests
// pass the tool schema as the response format.
func (c *Client) Generate(ctx context.Context, req *generation.Request) (*generation.Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, generation.NewUpstreamError(ProviderName, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, generation.NewUpstreamError(ProviderName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, generation.NewUpstreamError(ProviderName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, generation.NewUpstreamError(ProviderName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(raw, &apiErr)
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return nil, generation.NewRateLimitError(ProviderName, cause)
		}
		return nil, generation.NewUpstreamError(ProviderName, cause)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return nil, generation.NewUpstreamError(ProviderName, fmt.Errorf("unmarshal response: %w", err))
	}
	if !chatResp.Done {
		return nil, generation.NewUpstreamError(ProviderName, fmt.Errorf("incomplete response"))
	}

	c.logger.Debug("Ollama chat completion successful",
		zap.String("model", chatResp.Model),
		zap.Int64("eval_duration", chatResp.EvalDuration),
		zap.Int("eval_count", chatResp.EvalCount))

	out := &generation.Response{
		Text:  chatResp.Message.Content,
		Model: chatResp.Model,
		Usage: generation.Usage{
			InputTokens:  chatResp.PromptEvalCount,
			OutputTokens: chatResp.EvalCount,
			TotalTokens:  chatResp.PromptEvalCount + chatResp.EvalCount,
		},
	}
	if req.Tool != nil {
		out.ToolArguments = out.Text
	}
	return out, nil
}

func (c *Client) buildRequest(req *generation.Request) ChatRequest {
	chat := ChatRequest{
		Model:   c.model,
		Stream:  false,
		Options: map[string]interface{}{},
	}

	if system := req.SystemPrompt(); system != "" {
		if req.Tool != nil && req.Tool.Description != "" {
			system += "\n\n" + req.Tool.Description
		}
		chat.Messages = append(chat.Messages, ChatMessage{Role: "system", Content: system})
	}
	for _, msg := range req.Conversation() {
		m := ChatMessage{Role: string(msg.Role), Content: msg.Content}
		for _, img := range msg.Images {
			m.Images = append(m.Images, img.Base64())
		}
		chat.Messages = append(chat.Messages, m)
	}

	if req.Tool != nil {
		chat.Format = req.Tool.Parameters
	}
	if req.Temperature != nil {
		chat.Options["temperature"] = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		chat.Options["num_predict"] = maxTokens
	}
	return chat
}
