// Package generation defines the typed contract for calls to the text and
// image generation capability used by the extraction and card stages.
package generation

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Role tags a message in a conversation
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline image attached to a message
type Image struct {
	MIMEType string
	Data     []byte
}

// Base64 returns the image payload encoded for JSON transports
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL
func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, i.Base64())
}

// Message is one role-tagged entry of a request
type Message struct {
	Role    Role
	Content string
	Images  []Image
}

// Tool describes a strict output schema the capability must fill in
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Strict      bool
}

// Request is a single generation call
type Request struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
	Tool        *Tool
}

// SystemPrompt joins every system message
func (r *Request) SystemPrompt() string {
	var prompt string
	for _, msg := range r.Messages {
		if msg.Role != RoleSystem {
			continue
		}
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += msg.Content
	}
	return prompt
}

// Conversation returns the non-system messages in order
func (r *Request) Conversation() []Message {
	messages := make([]Message, 0, len(r.Messages))
	for _, msg := range r.Messages {
		if msg.Role != RoleSystem {
			messages = append(messages, msg)
		}
	}
	return messages
}

// Validate checks the request is usable by any provider
func (r *Request) Validate() error {
	if len(r.Conversation()) == 0 {
		return ErrEmptyConversation
	}
	if r.Tool != nil && r.Tool.Name == "" {
		return ErrToolNameRequired
	}
	return nil
}

// Usage is the token telemetry reported by the capability
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response holds either free text or structured tool arguments
type Response struct {
	Text          string
	ToolArguments string
	Model         string
	Usage         Usage
}

// Payload returns the structured arguments when present, the text otherwise
func (r *Response) Payload() string {
	if r.ToolArguments != "" {
		return r.ToolArguments
	}
	return r.Text
}

var (
	ErrEmptyConversation = errors.New("generation request needs at least one user message")
	ErrToolNameRequired  = errors.New("generation tool must have a name")

	// ErrUpstream marks a generic failure of the generation capability
	ErrUpstream = errors.New("generation capability failed")
	// ErrRateLimited marks a rate limit or quota rejection
	ErrRateLimited = errors.New("generation capability rate limited")
)

// ProviderError carries the provider name together with the failure kind
type ProviderError struct {
	Provider string
	Kind     error
	Cause    error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Cause)
}

// Unwrap exposes both the kind and the provider cause to errors.Is and errors.As
func (e *ProviderError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// NewUpstreamError wraps a provider failure
func NewUpstreamError(provider string, cause error) error {
	return &ProviderError{Provider: provider, Kind: ErrUpstream, Cause: cause}
}

// NewRateLimitError wraps a provider rate limit rejection
func NewRateLimitError(provider string, cause error) error {
	return &ProviderError{Provider: provider, Kind: ErrRateLimited, Cause: cause}
}
