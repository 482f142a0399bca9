// Package anthropic implements the Provider interface over the
// Anthropic Messages API using the official SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"strider/internal/provider"
	"strider/pkg/logger"
)

// Compile-time interface check.
var _ provider.Provider = (*AnthropicProvider)(nil)

// Error definitions.
var (
	ErrMissingAPIKey = errors.New("anthropic: api key is required")
)

// AnthropicProvider implements the Provider interface for Anthropic.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))

	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Chat sends a messages request and returns the response.
func (p *AnthropicProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	system, turns := splitMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	logger.Debug().
		Str("model", model).
		Int("message_count", len(turns)).
		Msg("Anthropic messages request")

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	return convertResponse(msg), nil
}

// splitMessages separates system text from conversational turns.
// System messages become the request's system field, joined in order;
// empty messages are dropped because the API rejects empty blocks.
func splitMessages(messages []provider.Message) (string, []anthropic.MessageParam) {
	var systemParts []string
	turns := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case provider.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case provider.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return strings.Join(systemParts, "\n\n"), turns
}

// convertResponse converts an SDK message to a provider response.
func convertResponse(msg *anthropic.Message) *provider.ChatResponse {
	var content strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	usage := &provider.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}

	return &provider.ChatResponse{
		Content:      content.String(),
		Usage:        usage,
		FinishReason: mapStopReason(string(msg.StopReason)),
	}
}

// mapStopReason converts an API stop reason to a finish reason.
func mapStopReason(stopReason string) string {
	switch stopReason {
	case "max_tokens":
		return provider.FinishReasonLength
	default:
		return provider.FinishReasonStop
	}
}
