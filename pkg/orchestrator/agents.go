package orchestrator

import "time"

// AgentSpec defines one agent's identity, prompt template, model, and
// dependencies within the analysis DAG.
type AgentSpec struct {
	Name           string
	TemplateID     string
	Model          string
	Dependencies   []string
	PerCallTimeout time.Duration
	MaxTokens      int
}

const defaultPerCallTimeout = 30 * time.Second

// ProductionAgents is the fixed five-agent set every analysis runs:
// analyst frames the problem, commercial and market branch off it in
// parallel, financial builds on both, and reviewer consolidates everything.
func ProductionAgents(model string) []AgentSpec {
	return []AgentSpec{
		{
			Name:           "analyst",
			TemplateID:     "analyst",
			Model:          model,
			Dependencies:   nil,
			PerCallTimeout: defaultPerCallTimeout,
			MaxTokens:      1200,
		},
		{
			Name:           "commercial",
			TemplateID:     "commercial",
			Model:          model,
			Dependencies:   []string{"analyst"},
			PerCallTimeout: defaultPerCallTimeout,
			MaxTokens:      1200,
		},
		{
			Name:           "market",
			TemplateID:     "market",
			Model:          model,
			Dependencies:   []string{"analyst"},
			PerCallTimeout: defaultPerCallTimeout,
			MaxTokens:      1200,
		},
		{
			Name:           "financial",
			TemplateID:     "financial",
			Model:          model,
			Dependencies:   []string{"analyst", "commercial"},
			PerCallTimeout: defaultPerCallTimeout,
			MaxTokens:      1200,
		},
		{
			Name:           "reviewer",
			TemplateID:     "reviewer",
			Model:          model,
			Dependencies:   []string{"analyst", "commercial", "market", "financial"},
			PerCallTimeout: defaultPerCallTimeout,
			MaxTokens:      2000,
		},
	}
}

// reviewerAgentName is the one agent whose completion determines whether a
// failing run is a partial failure or a total one (see aggregateStatus).
const reviewerAgentName = "reviewer"

// DepthDescription expands the depth enum into prompt guidance. Agents that
// reference {{.DepthDescription}} get a short, human-readable steer rather
// than the bare enum value.
func DepthDescription(depth string) string {
	switch depth {
	case "fast":
		return "a quick pass — prioritize the two or three highest-leverage points over exhaustiveness"
	case "deep":
		return "an exhaustive pass — consider edge cases, second-order effects, and competing interpretations"
	default:
		return "a balanced pass — cover the obvious ground thoroughly without chasing every edge case"
	}
}
