package promptstore

import (
	"embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LoadsAllAgentTemplates(t *testing.T) {
	store, err := New()
	require.NoError(t, err)

	for _, id := range []string{"analyst", "commercial", "market", "financial", "reviewer"} {
		out, err := store.Render(id, Variables{
			BusinessType:     "retail",
			Depth:            "standard",
			DepthDescription: "balanced depth and turnaround",
		})
		require.NoError(t, err, "template %s", id)
		assert.NotEmpty(t, out)
		assert.Contains(t, out, "retail")
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	store, err := New()
	require.NoError(t, err)

	_, err = store.Render("does-not-exist", Variables{})
	require.Error(t, err)
}

//go:embed testdata/bad_variable/templates
var badVariableFS embed.FS

func TestNewFromFS_RejectsUnknownVariable(t *testing.T) {
	_, err := NewFromFS(badVariableFS, "testdata/bad_variable/templates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown variable")
}

//go:embed testdata/good/templates
var goodFS embed.FS

func TestNewFromFS_AcceptsKnownVariables(t *testing.T) {
	store, err := NewFromFS(goodFS, "testdata/good/templates")
	require.NoError(t, err)

	out, err := store.Render("only", Variables{Industry: "fintech"})
	require.NoError(t, err)
	assert.Contains(t, out, "fintech")
}
