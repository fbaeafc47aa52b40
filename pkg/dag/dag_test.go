package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productionGraph() map[string][]string {
	return map[string][]string{
		"analyst":    {},
		"commercial": {"analyst"},
		"market":     {"analyst"},
		"financial":  {"analyst", "commercial"},
		"reviewer":   {"analyst", "commercial", "market", "financial"},
	}
}

func TestResolve_ProductionAgentSet(t *testing.T) {
	plan, err := Resolve(productionGraph())
	require.NoError(t, err)

	require.Len(t, plan.Layers, 4)
	assert.Equal(t, []string{"analyst"}, plan.Layers[0])
	assert.Equal(t, []string{"commercial", "market"}, plan.Layers[1])
	assert.Equal(t, []string{"financial"}, plan.Layers[2])
	assert.Equal(t, []string{"reviewer"}, plan.Layers[3])
}

func TestResolve_MissingDependency(t *testing.T) {
	graph := map[string][]string{
		"analyst":  {},
		"reviewer": {"analyst", "ghost"},
	}

	_, err := Resolve(graph)
	require.Error(t, err)

	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ghost", missing.Dependency)
}

func TestResolve_DirectCycle(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}

	_, err := Resolve(graph)
	require.Error(t, err)

	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
}

func TestResolve_IndirectCycle(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}

	_, err := Resolve(graph)
	require.Error(t, err)

	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
}

func TestResolve_SingleNodeNoDeps(t *testing.T) {
	graph := map[string][]string{"solo": {}}

	plan, err := Resolve(graph)
	require.NoError(t, err)
	require.Len(t, plan.Layers, 1)
	assert.Equal(t, []string{"solo"}, plan.Layers[0])
}
