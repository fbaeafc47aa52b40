package llmprovider

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIProvider implements CompletionProvider against the OpenAI chat
// completions API, selected as the alternate provider via LLM_PROVIDER.
type OpenAIProvider struct {
	sdk openai.Client
}

// NewOpenAIProvider builds a provider from an API key and optional base URL
// override (used in tests against a local stub server).
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{sdk: openai.NewClient(opts...)}
}

// Complete issues one non-streaming chat completion call.
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, userMessage, model string, maxTokens int, deadline time.Time) (*Completion, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
	}

	comp, err := p.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	var text string
	if len(comp.Choices) > 0 {
		text = comp.Choices[0].Message.Content
	}

	return &Completion{
		Text:         text,
		InputTokens:  int(comp.Usage.PromptTokens),
		OutputTokens: int(comp.Usage.CompletionTokens),
	}, nil
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: ErrorKindUpstreamUnavailable, Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return &ProviderError{Kind: ErrorKindRateLimited, Err: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ProviderError{Kind: ErrorKindAuth, Err: err}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &ProviderError{Kind: ErrorKindInvalidInput, Err: err}
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			return &ProviderError{Kind: ErrorKindUpstreamUnavailable, Err: err}
		}
	}

	return &ProviderError{Kind: ErrorKindUpstreamUnavailable, Err: err}
}
