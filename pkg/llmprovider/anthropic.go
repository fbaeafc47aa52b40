package llmprovider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements CompletionProvider against the Anthropic
// Messages API.
type AnthropicProvider struct {
	sdk anthropic.Client
}

// NewAnthropicProvider builds a provider from an API key and optional base
// URL override (used in tests against a local stub server).
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{sdk: anthropic.NewClient(opts...)}
}

// Complete issues one non-streaming Messages.New call.
func (p *AnthropicProvider) Complete(ctx context.Context, systemPrompt, userMessage, model string, maxTokens int, deadline time.Time) (*Completion, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	return &Completion{
		Text:         text.String(),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func classifyAnthropicError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: ErrorKindUpstreamUnavailable, Err: err}
	}

	var apiErr *anthropic.Error
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
