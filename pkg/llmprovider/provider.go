// Package llmprovider adapts external LLM APIs behind one synchronous
// completion contract, classifying provider errors so the orchestrator knows
// what's retryable.
package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Completion is the result of one successful completion call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// ErrorKind classifies a provider failure for the orchestrator's retry logic.
type ErrorKind string

const (
	ErrorKindRateLimited         ErrorKind = "rate_limited"
	ErrorKindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	ErrorKindInvalidInput        ErrorKind = "invalid_input"
	ErrorKindAuth                ErrorKind = "auth"
)

// Retryable reports whether the orchestrator should retry a call that failed
// with this error kind.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindRateLimited || k == ErrorKindUpstreamUnavailable
}

// ProviderError wraps a classified failure from the remote LLM.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llmprovider: %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError extracts a *ProviderError from err, if present.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// CompletionProvider is the single operation every adapter implements: one
// call to the remote model, bounded by deadline, returning output text plus
// token usage.
type CompletionProvider interface {
	Complete(ctx context.Context, systemPrompt, userMessage, model string, maxTokens int, deadline time.Time) (*Completion, error)
}
