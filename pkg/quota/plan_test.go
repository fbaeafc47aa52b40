package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsFor_AllPlansDefined(t *testing.T) {
	for _, plan := range []Plan{PlanFree, PlanPro, PlanEnterprise} {
		_, ok := LimitsFor(plan)
		require.True(t, ok, plan)
	}
}

func TestLimitsFor_UnknownPlan(t *testing.T) {
	_, ok := LimitsFor(Plan("nonexistent"))
	assert.False(t, ok)
}

func TestFreePlan_AgentSubsetExcludesMarketAndFinancial(t *testing.T) {
	limits, _ := LimitsFor(PlanFree)
	assert.True(t, limits.AllowsAgent("analyst"))
	assert.True(t, limits.AllowsAgent("commercial"))
	assert.True(t, limits.AllowsAgent("reviewer"))
	assert.False(t, limits.AllowsAgent("market"))
	assert.False(t, limits.AllowsAgent("financial"))
}

func TestProPlan_AllAgentsAndTwoExportFormats(t *testing.T) {
	limits, _ := LimitsFor(PlanPro)
	for _, a := range []string{"analyst", "commercial", "market", "financial", "reviewer"} {
		assert.True(t, limits.AllowsAgent(a), a)
	}
	assert.True(t, limits.AllowsExport("markdown"))
	assert.True(t, limits.AllowsExport("pdf"))
	assert.False(t, limits.AllowsExport("docx"))
}

func TestEnterprisePlan_Unbounded(t *testing.T) {
	limits, _ := LimitsFor(PlanEnterprise)
	assert.Equal(t, Unbounded, limits.AnalysesPerCycle)
	assert.Equal(t, Unbounded, limits.RefineMessagesPerAnalysis)
	assert.True(t, limits.AllowsExport("pptx"))
}

func TestUpgradeSuggestion(t *testing.T) {
	assert.Equal(t, "pro", upgradeSuggestion(PlanFree))
	assert.Equal(t, "enterprise", upgradeSuggestion(PlanPro))
	assert.Equal(t, "", upgradeSuggestion(PlanEnterprise))
}

func TestCurrentPeriodStart_BeforeCycleStart(t *testing.T) {
	cycleStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := cycleStart.Add(-time.Hour)
	assert.Equal(t, cycleStart, CurrentPeriodStart(cycleStart, now))
}

func TestCurrentPeriodStart_WithinFirstCycle(t *testing.T) {
	cycleStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := cycleStart.Add(10 * 24 * time.Hour)
	assert.Equal(t, cycleStart, CurrentPeriodStart(cycleStart, now))
}

func TestCurrentPeriodStart_RollsOverAfterCycleEnds(t *testing.T) {
	cycleStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := cycleStart.Add(31 * 24 * time.Hour)
	want := cycleStart.Add(cyclePeriod)
	assert.Equal(t, want, CurrentPeriodStart(cycleStart, now))
}

func TestCurrentPeriodStart_MultipleCyclesElapsed(t *testing.T) {
	cycleStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := cycleStart.Add(95 * 24 * time.Hour) // 3 full cycles + 5 days
	want := cycleStart.Add(3 * cyclePeriod)
	assert.Equal(t, want, CurrentPeriodStart(cycleStart, now))
}
