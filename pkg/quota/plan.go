// Package quota holds the static plan table and the transactional
// check-and-consume operation that enforces it.
package quota

// Plan names an enumerated subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Feature names a countable or gated capability.
type Feature string

const (
	FeatureAnalysesCreated           Feature = "analyses_created"
	FeatureRefineMessagesPerAnalysis Feature = "refine_messages_per_analysis"
)

// Unbounded marks a limit with no ceiling; CheckAndConsume always allows it
// and never touches the counter row.
const Unbounded = -1

// Limits is one plan's static row: counters, the enabled agent subset, and
// allowed export formats.
type Limits struct {
	AnalysesPerCycle          int
	RefineMessagesPerAnalysis int
	Agents                    []string
	ExportFormats             []string
}

var planTable = map[Plan]Limits{
	PlanFree: {
		AnalysesPerCycle:          5,
		RefineMessagesPerAnalysis: 3,
		Agents:                    []string{"analyst", "commercial", "reviewer"},
		ExportFormats:             []string{"markdown"},
	},
	PlanPro: {
		AnalysesPerCycle:          50,
		RefineMessagesPerAnalysis: 20,
		Agents:                    []string{"analyst", "commercial", "market", "financial", "reviewer"},
		ExportFormats:             []string{"markdown", "pdf"},
	},
	PlanEnterprise: {
		AnalysesPerCycle:          Unbounded,
		RefineMessagesPerAnalysis: Unbounded,
		Agents:                    []string{"analyst", "commercial", "market", "financial", "reviewer"},
		ExportFormats:             []string{"markdown", "pdf", "docx", "pptx"},
	},
}

// LimitsFor returns the static row for a plan.
func LimitsFor(plan Plan) (Limits, bool) {
	l, ok := planTable[plan]
	return l, ok
}

// limitFor resolves the counter ceiling for a countable feature.
func (l Limits) limitFor(feature Feature) int {
	switch feature {
	case FeatureAnalysesCreated:
		return l.AnalysesPerCycle
	case FeatureRefineMessagesPerAnalysis:
		return l.RefineMessagesPerAnalysis
	default:
		return 0
	}
}

// AllowsAgent reports whether the plan's effective agent subgraph includes
// name. Ancestors excluded by plan are treated as unavailable by the
// orchestrator (degrade, never silently substitute).
func (l Limits) AllowsAgent(name string) bool {
	for _, a := range l.Agents {
		if a == name {
			return true
		}
	}
	return false
}

// AllowsExport reports whether format is enabled for the plan.
func (l Limits) AllowsExport(format string) bool {
	for _, f := range l.ExportFormats {
		if f == format {
			return true
		}
	}
	return false
}

// upgradeSuggestion names the next plan up, empty if already at the top.
func upgradeSuggestion(plan Plan) string {
	switch plan {
	case PlanFree:
		return string(PlanPro)
	case PlanPro:
		return string(PlanEnterprise)
	default:
		return ""
	}
}
