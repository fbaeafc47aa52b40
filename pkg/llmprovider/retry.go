package llmprovider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxRetries bounds how many extra attempts a retrying call makes beyond the
// first, matching the per-agent retry budget.
const maxRetries = 2

// Retrying wraps a CompletionProvider, retrying calls that fail with a
// retryable ErrorKind using capped exponential backoff. Non-retryable
// failures (invalid_input, auth) return on the first attempt.
type Retrying struct {
	inner CompletionProvider
}

// NewRetrying wraps inner with the standard retry policy.
func NewRetrying(inner CompletionProvider) *Retrying {
	return &Retrying{inner: inner}
}

func (r *Retrying) Complete(ctx context.Context, systemPrompt, userMessage, model string, maxTokens int, deadline time.Time) (*Completion, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), maxRetries), ctx)

	var result *Completion
	op := func() error {
		comp, err := r.inner.Complete(ctx, systemPrompt, userMessage, model, maxTokens, deadline)
		if err != nil {
			if pe, ok := AsProviderError(err); ok && !pe.Kind.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		result = comp
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 4 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	return b
}
