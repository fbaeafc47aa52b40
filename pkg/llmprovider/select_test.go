package llmprovider

import (
	"testing"

	"github.com/brightlane/insightforge/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SelectsAnthropic(t *testing.T) {
	p, err := New(config.LLMConfig{Provider: "anthropic", APIKey: "sk-ant-test"})
	require.NoError(t, err)

	r, ok := p.(*Retrying)
	require.True(t, ok)
	_, ok = r.inner.(*AnthropicProvider)
	assert.True(t, ok)
}

func TestNew_SelectsOpenAI(t *testing.T) {
	p, err := New(config.LLMConfig{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)

	r, ok := p.(*Retrying)
	require.True(t, ok)
	_, ok = r.inner.(*OpenAIProvider)
	assert.True(t, ok)
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "carbon-based", APIKey: "x"})
	require.Error(t, err)
}
