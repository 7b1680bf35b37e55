package coach

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/coach/tools"
)

const (
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultProviderTimeout bounds a single non-streaming call
	DefaultProviderTimeout = 60 * time.Second
	// DefaultStreamTimeout bounds a full streamed response
	DefaultStreamTimeout = 120 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements ModelProvider using OpenAI's chat
// completions API.
type OpenAIProvider struct {
	client    openai.Client
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a provider. The HTTP client timeout must
// cover the longest expected streamed response; per-call deadlines come
// from the request context.
func NewOpenAIProvider(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultStreamTimeout
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Chat performs one blocking completion call.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ModelResponse, error) {
	params := p.buildParams(req, false)
	p.logRequest(ctx, "chat", req)

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)

	if err != nil {
		p.logError(ctx, "chat", req.Settings.Model, err, latency)
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to chat: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	choice := resp.Choices[0]
	result := &ModelResponse{
		Content:      choice.Message.Content,
		ToolCalls:    extractToolCalls(choice.Message.ToolCalls),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}

	p.logResponse(ctx, "chat", req.Settings.Model, result.Content, latency)
	return result, nil
}

// ChatStream performs one streaming completion call, forwarding text
// deltas through emit. Tool-call deltas are accumulated by index and
// returned on the final response rather than emitted.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest, emit func(StreamEvent)) (*ModelResponse, error) {
	params := p.buildParams(req, true)
	p.logRequest(ctx, "chat_stream", req)

	start := time.Now()
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			emit(TokenEvent(delta))
		}
	}
	latency := time.Since(start)

	if err := stream.Err(); err != nil {
		p.logError(ctx, "chat_stream", req.Settings.Model, err, latency)
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to stream chat: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to stream chat: %w", err)
	}

	if len(acc.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	choice := acc.Choices[0]
	result := &ModelResponse{
		Content:      choice.Message.Content,
		ToolCalls:    extractToolCalls(choice.Message.ToolCalls),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(acc.Usage.PromptTokens),
			CompletionTokens: int(acc.Usage.CompletionTokens),
		},
	}

	p.logResponse(ctx, "chat_stream", req.Settings.Model, result.Content, latency)
	return result, nil
}

func (p *OpenAIProvider) buildParams(req ChatRequest, streaming bool) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Settings.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Settings.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Settings.MaxTokens))
	}
	if req.Settings.Temperature > 0 {
		params.Temperature = openai.Float(req.Settings.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}
	if streaming {
		// The API only reports usage on a stream when asked; without
		// this the final chunk carries no token counts.
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}
	}
	return params
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, assistantMessageParam(m))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// assistantMessageParam rebuilds an assistant message, carrying its
// tool-call requests so the provider sees the same transcript it
// produced.
func assistantMessageParam(m Message) openai.ChatCompletionMessageParamUnion {
	if len(m.ToolCalls) == 0 {
		return openai.AssistantMessage(m.Content)
	}

	calls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			},
		})
	}

	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if m.Content != "" {
		assistant.Content.OfString = openai.String(m.Content)
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func toOpenAITools(defs []tools.Definition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  shared.FunctionParameters(d.Parameters),
		}))
	}
	return out
}

func extractToolCalls(calls []openai.ChatCompletionMessageToolCallUnion) []ToolCallRequest {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCallRequest, 0, len(calls))
	for _, tc := range calls {
		out = append(out, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

func (p *OpenAIProvider) logRequest(ctx context.Context, operation string, req ChatRequest) {
	if p.logger == nil || !p.debugMode {
		return
	}
	previews := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		previews = append(previews, SanitizePrompt(m.Content, false))
	}
	p.logger.Debug("llm_api_request",
		zap.String("operation", operation),
		zap.String("model", req.Settings.Model),
		zap.Int("message_count", len(req.Messages)),
		zap.Int("tool_count", len(req.Tools)),
		zap.Strings("message_previews", previews),
		zap.String("user_id", ExtractUserID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
	)
}

func (p *OpenAIProvider) logResponse(ctx context.Context, operation, model, content string, latency time.Duration) {
	if p.logger == nil || !p.debugMode {
		return
	}
	p.logger.Debug("llm_api_response",
		zap.String("operation", operation),
		zap.String("model", model),
		zap.Int("response_length", len(content)),
		zap.String("response_preview", SanitizeResponse(content, true)),
		zap.String("user_id", ExtractUserID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)
}

func (p *OpenAIProvider) logError(ctx context.Context, operation, model string, err error, latency time.Duration) {
	if p.logger == nil || !p.debugMode {
		return
	}
	p.logger.Debug("llm_api_error",
		zap.String("operation", operation),
		zap.String("model", model),
		zap.Error(err),
		zap.String("user_id", ExtractUserID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)
}
