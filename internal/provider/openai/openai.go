// Package openai implements the Provider interface over the OpenAI
// chat completions API. Compatible gateways only need the endpoint
// changed in the config.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"strider/internal/provider"
	"strider/pkg/logger"
)

// Compile-time interface check.
var _ provider.Provider = (*OpenAIProvider)(nil)

// Error definitions.
var (
	ErrConnectionFailed = errors.New("failed to connect to OpenAI API")
	ErrModelNotFound    = errors.New("model not found")
	ErrInvalidResponse  = errors.New("invalid response from OpenAI")
	ErrRequestTimeout   = errors.New("request timeout")
	ErrAuthFailed       = errors.New("authentication failed")
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	apiKey     string
	endpoint   string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
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

	return &OpenAIProvider{
		apiKey:    cfg.APIKey,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Chat sends a chat completion request and returns the response.
func (p *OpenAIProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	chatReq := p.buildRequest(req)

	logger.Debug().
		Str("model", chatReq.Model).
		Int("message_count", len(chatReq.Messages)).
		Msg("OpenAI chat request")

	resp, err := p.doRequest(ctx, "/chat/completions", chatReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("OpenAI error response")
		return nil, p.handleErrorResponse(resp.StatusCode, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		logger.Error().Err(err).Str("body", string(body)).Msg("failed to parse OpenAI response")
		return nil, ErrInvalidResponse
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("openai API error: [%s] %s", chatResp.Error.Type, chatResp.Error.Message)
	}

	return p.convertResponse(&chatResp), nil
}

// buildRequest converts a provider.ChatRequest to the wire format.
func (p *OpenAIProvider) buildRequest(req provider.ChatRequest) *chatRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}

	chatReq := &chatRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		chatReq.MaxTokens = maxTokens
	}

	if req.Temperature > 0 {
		temp := req.Temperature
		chatReq.Temperature = &temp
	}

	for _, msg := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return chatReq
}

// doRequest sends an HTTP request to the API.
func (p *OpenAIProvider) doRequest(ctx context.Context, path string, body any) (*http.Response, error) {
	url := p.endpoint + path

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return resp, nil
}

// handleErrorResponse converts an error response to an appropriate error.
func (p *OpenAIProvider) handleErrorResponse(statusCode int, body []byte) error {
	var errResp chatResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		msg := errResp.Error.Message
		if errResp.Error.Code == "context_length_exceeded" {
			return &provider.ProviderError{
				Code:      provider.ErrCodeContextWindowExceeded,
				Message:   msg,
				Provider:  "openai",
				Retryable: false,
			}
		}
		switch statusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, msg)
		case http.StatusTooManyRequests:
			return &provider.ProviderError{
				Code:      provider.ErrCodeRateLimited,
				Message:   msg,
				Provider:  "openai",
				Retryable: true,
			}
		default:
			return fmt.Errorf("openai error (%d): [%s] %s", statusCode, errResp.Error.Type, msg)
		}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusServiceUnavailable:
		return &provider.ProviderError{
			Code:      provider.ErrCodeServiceUnavailable,
			Message:   "service unavailable",
			Provider:  "openai",
			Retryable: true,
		}
	default:
		return fmt.Errorf("openai returned status %d: %s", statusCode, string(body))
	}
}

// convertResponse converts a wire response to a provider response.
func (p *OpenAIProvider) convertResponse(resp *chatResponse) *provider.ChatResponse {
	result := &provider.ChatResponse{
		FinishReason: provider.FinishReasonStop,
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		result.Content = choice.Message.Content
		if choice.FinishReason == "length" {
			result.FinishReason = provider.FinishReasonLength
		}
	}

	if resp.Usage != nil {
		result.Usage = &provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return result
}
